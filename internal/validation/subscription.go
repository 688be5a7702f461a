package validation

import (
	"net/url"

	"saifuu/internal/core"
)

var subscriptionNullable = []string{"categoryId", "description"}

type subscriptionCreateBody struct {
	Name            string  `json:"name" validate:"required,max=100"`
	Amount          *int64  `json:"amount" validate:"required,gt=0,lte=999999999999"`
	CategoryID      *int64  `json:"categoryId" validate:"omitnil,gt=0"`
	Frequency       string  `json:"frequency" validate:"required,frequency"`
	NextPaymentDate string  `json:"nextPaymentDate" validate:"required,date"`
	Description     *string `json:"description" validate:"omitnil,max=500"`
	AutoGenerate    *bool   `json:"autoGenerate"`
	IsActive        *bool   `json:"isActive"`
}

type subscriptionUpdateBody struct {
	Name            *string `json:"name" validate:"omitnil,min=1,max=100"`
	Amount          *int64  `json:"amount" validate:"omitnil,gt=0,lte=999999999999"`
	CategoryID      *int64  `json:"categoryId" validate:"omitnil,gt=0"`
	Frequency       *string `json:"frequency" validate:"omitnil,frequency"`
	NextPaymentDate *string `json:"nextPaymentDate" validate:"omitnil,date"`
	Description     *string `json:"description" validate:"omitnil,max=500"`
	AutoGenerate    *bool   `json:"autoGenerate"`
	IsActive        *bool   `json:"isActive"`
}

func SubscriptionCreate(data []byte) (core.NewSubscription, error) {
	b, err := parseBody[subscriptionCreateBody](data, subscriptionNullable)
	if err != nil {
		return core.NewSubscription{}, err
	}
	if err := b.errs.Err(); err != nil {
		return core.NewSubscription{}, err
	}
	v := b.value
	next, _ := core.ParseDate(v.NextPaymentDate)
	sub := core.NewSubscription{
		Name:            v.Name,
		Amount:          *v.Amount,
		CategoryID:      v.CategoryID,
		Frequency:       core.Frequency(v.Frequency),
		NextPaymentDate: next,
		Description:     v.Description,
		AutoGenerate:    true,
		IsActive:        true,
	}
	if v.AutoGenerate != nil {
		sub.AutoGenerate = *v.AutoGenerate
	}
	if v.IsActive != nil {
		sub.IsActive = *v.IsActive
	}
	return sub, nil
}

func SubscriptionUpdate(data []byte) (core.SubscriptionPatch, error) {
	b, err := parseBody[subscriptionUpdateBody](data, subscriptionNullable)
	if err != nil {
		return core.SubscriptionPatch{}, err
	}
	null := nulls(&b.value, b.raw, b.blanked, subscriptionNullable, b.errs)
	if err := b.errs.Err(); err != nil {
		return core.SubscriptionPatch{}, err
	}
	v := b.value
	patch := core.SubscriptionPatch{
		Name:         v.Name,
		Amount:       v.Amount,
		CategoryID:   v.CategoryID,
		Description:  v.Description,
		AutoGenerate: v.AutoGenerate,
		IsActive:     v.IsActive,
		Null:         null,
	}
	if v.Frequency != nil {
		f := core.Frequency(*v.Frequency)
		patch.Frequency = &f
	}
	if v.NextPaymentDate != nil {
		d, _ := core.ParseDate(*v.NextPaymentDate)
		patch.NextPaymentDate = &d
	}
	if patch.IsEmpty() {
		return patch, core.NewValidationError(core.FormField, "at least one field must be provided")
	}
	return patch, nil
}

func SubscriptionList(q url.Values) (core.SubscriptionQuery, error) {
	r := newQueryReader(q)
	var f core.SubscriptionFilters

	f.IsActive = r.Bool("isActive", "is_active")
	if id := r.Int("categoryId", "category_id"); id != nil {
		checkVar(r.errs, "categoryId", *id, "gt=0")
		f.CategoryID = id
	}
	if fr := r.String("frequency"); fr != nil {
		checkVar(r.errs, "frequency", *fr, "frequency")
		freq := core.Frequency(*fr)
		f.Frequency = &freq
	}

	query := core.SubscriptionQuery{
		Filters: f,
		Sort:    r.Sort(core.SubscriptionSortFields, core.Sort{By: "next_payment_date", Order: "asc"}),
		Page:    r.Page(),
	}
	return query, r.errs.Err()
}

// SubscriptionsDue reads the as-of date of a due query, defaulting to today.
func SubscriptionsDue(q url.Values, today core.Date) (core.Date, error) {
	r := newQueryReader(q)
	if d := r.Date("date", "asOf"); d != nil {
		return *d, nil
	}
	return today, r.errs.Err()
}
