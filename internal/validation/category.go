package validation

import (
	"net/url"

	"saifuu/internal/core"
)

type categoryCreateBody struct {
	Name         string `json:"name" validate:"required,max=100"`
	Type         string `json:"type" validate:"required,category_type"`
	Color        string `json:"color" validate:"max=32"`
	Icon         string `json:"icon" validate:"max=64"`
	DisplayOrder *int64 `json:"displayOrder" validate:"omitnil,gte=0"`
}

type categoryUpdateBody struct {
	Name         *string `json:"name" validate:"omitnil,min=1,max=100"`
	Type         *string `json:"type" validate:"omitnil,category_type"`
	Color        *string `json:"color" validate:"omitnil,max=32"`
	Icon         *string `json:"icon" validate:"omitnil,max=64"`
	DisplayOrder *int64  `json:"displayOrder" validate:"omitnil,gte=0"`
	IsActive     *bool   `json:"isActive"`
}

type categoryReorderBody struct {
	CategoryIDs []int64 `json:"categoryIds" validate:"required,unique,dive,gt=0"`
}

func CategoryCreate(data []byte) (core.NewCategory, error) {
	b, err := parseBody[categoryCreateBody](data, nil)
	if err != nil {
		return core.NewCategory{}, err
	}
	if err := b.errs.Err(); err != nil {
		return core.NewCategory{}, err
	}
	return core.NewCategory{
		Name:         b.value.Name,
		Type:         core.CategoryType(b.value.Type),
		Color:        b.value.Color,
		Icon:         b.value.Icon,
		DisplayOrder: b.value.DisplayOrder,
	}, nil
}

func CategoryUpdate(data []byte) (core.CategoryPatch, error) {
	b, err := parseBody[categoryUpdateBody](data, nil)
	if err != nil {
		return core.CategoryPatch{}, err
	}
	if b.raw != nil {
		nulls(&b.value, b.raw, nil, nil, b.errs)
	}
	if err := b.errs.Err(); err != nil {
		return core.CategoryPatch{}, err
	}
	v := b.value
	patch := core.CategoryPatch{
		Name:         v.Name,
		Color:        v.Color,
		Icon:         v.Icon,
		DisplayOrder: v.DisplayOrder,
		IsActive:     v.IsActive,
	}
	if v.Type != nil {
		t := core.CategoryType(*v.Type)
		patch.Type = &t
	}
	if patch.IsEmpty() {
		return patch, core.NewValidationError(core.FormField, "at least one field must be provided")
	}
	return patch, nil
}

func CategoryReorder(data []byte) ([]int64, error) {
	b, err := parseBody[categoryReorderBody](data, nil)
	if err != nil {
		return nil, err
	}
	if err := b.errs.Err(); err != nil {
		return nil, err
	}
	return b.value.CategoryIDs, nil
}

func CategoryList(q url.Values) (core.CategoryFilter, error) {
	r := newQueryReader(q)
	var f core.CategoryFilter
	if t := r.String("type"); t != nil {
		checkVar(r.errs, "type", *t, "category_type")
		ct := core.CategoryType(*t)
		f.Type = &ct
	}
	if inactive := r.Bool("includeInactive", "include_inactive"); inactive != nil {
		f.IncludeInactive = *inactive
	}
	return f, r.errs.Err()
}
