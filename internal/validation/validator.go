// Package validation turns untrusted request input into typed values for the
// query layer, or into field-level errors. Nothing here touches the database.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"saifuu/internal/core"
)

// ErrMalformedJSON is returned when a request body is not parseable JSON.
var ErrMalformedJSON = errors.New("malformed JSON body")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields under the names clients send.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enums := map[string]func(string) bool{
		"category_type":    func(s string) bool { return core.CategoryType(s).IsValid() },
		"transaction_type": func(s string) bool { return core.TransactionType(s).IsValid() },
		"frequency":        func(s string) bool { return core.Frequency(s).IsValid() },
		"date": func(s string) bool {
			_, err := core.ParseDate(s)
			return err == nil
		},
	}
	for tag, ok := range enums {
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return ok(fl.Field().String())
		})
	}
	return v
}

// decodeBody unmarshals a JSON object into dst. JSON type mismatches are
// recorded in fe under the offending field. The raw key map is returned so
// callers can tell an explicit null from an absent key.
func decodeBody(body []byte, dst any, fe core.FieldErrors) (map[string]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: request body is empty", ErrMalformedJSON)
	}
	if !json.Valid(body) {
		return nil, ErrMalformedJSON
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		fe.Add(core.FormField, "request body must be a JSON object")
		return nil, nil
	}

	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		field := typeErr.Field
		if field == "" {
			field = core.FormField
		}
		fe.Add(field, typeMessage(typeErr))
	}
	return raw, nil
}

func typeMessage(e *json.UnmarshalTypeError) string {
	switch e.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "must be an integer"
	case reflect.String:
		return "must be a string"
	case reflect.Bool:
		return "must be a boolean"
	case reflect.Slice, reflect.Array:
		return "must be an array"
	}
	return "has an invalid type"
}

// check runs struct tag validation, skipping fields that already carry a
// decode error.
func check(dst any, fe core.FieldErrors) {
	err := validate.Struct(dst)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fe.Add(core.FormField, "invalid input")
		return
	}
	for _, e := range verrs {
		field := e.Field()
		if _, seen := fe[field]; seen {
			continue
		}
		fe.Add(field, message(e))
	}
}

// checkVar validates a single value against tag and records failures
// under field.
func checkVar(fe core.FieldErrors, field string, value any, tag string) {
	err := validate.Var(value, tag)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			fe.Add(field, message(e))
		}
		return
	}
	fe.Add(field, "is invalid")
}

func message(e validator.FieldError) string {
	p := e.Param()
	switch e.Tag() {
	case "required":
		return "is required"
	case "gt":
		if p == "0" {
			return "must be a positive integer"
		}
		return "must be greater than " + p
	case "gte":
		return "must be at least " + p
	case "lte":
		return "must be at most " + p
	case "min", "max":
		return lengthMessage(e)
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(p), ", ")
	case "category_type":
		return "must be one of: income, expense, both"
	case "transaction_type":
		return "must be one of: income, expense"
	case "frequency":
		return "must be one of: daily, weekly, monthly, yearly"
	case "date":
		return "must be a valid date (YYYY-MM-DD)"
	case "url":
		return "must be a valid URL"
	case "unique":
		return "must not contain duplicates"
	}
	return fmt.Sprintf("failed %s validation", e.Tag())
}

func lengthMessage(e validator.FieldError) string {
	p := e.Param()
	switch e.Kind() {
	case reflect.String:
		if e.Tag() == "min" {
			if p == "1" {
				return "must not be empty"
			}
			return "must be at least " + p + " characters"
		}
		return "must be at most " + p + " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		if e.Tag() == "min" {
			return "must contain at least " + p + " items"
		}
		return "must contain at most " + p + " items"
	}
	if e.Tag() == "min" {
		return "must be at least " + p
	}
	return "must be at most " + p
}

// normalizeStrings trims every string, *string and []string field of the
// struct dst points to. Blank strings in the nullable fields are reset to
// nil and their JSON names returned.
func normalizeStrings(dst any, nullable []string) []string {
	var blanked []string
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		switch {
		case f.Kind() == reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.String:
			if f.IsNil() {
				continue
			}
			s := strings.TrimSpace(f.Elem().String())
			name := jsonName(t.Field(i))
			if s == "" && slices.Contains(nullable, name) {
				f.Set(reflect.Zero(f.Type()))
				blanked = append(blanked, name)
				continue
			}
			f.Elem().SetString(s)
		case f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String:
			for j := 0; j < f.Len(); j++ {
				f.Index(j).SetString(strings.TrimSpace(f.Index(j).String()))
			}
		}
	}
	return blanked
}

func jsonName(f reflect.StructField) string {
	return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
}

func isNull(raw map[string]json.RawMessage, key string) bool {
	v, ok := raw[key]
	return ok && string(bytes.TrimSpace(v)) == "null"
}

// nulls collects the nullable fields of a patch body that the client
// cleared, with an explicit null or a blank string. An explicit null on any
// other field of dst is an error.
func nulls(dst any, raw map[string]json.RawMessage, blanked, nullable []string, fe core.FieldErrors) []string {
	var out []string
	t := reflect.TypeOf(dst).Elem()
	for i := 0; i < t.NumField(); i++ {
		name := jsonName(t.Field(i))
		switch {
		case slices.Contains(blanked, name):
			out = append(out, name)
		case !isNull(raw, name):
		case slices.Contains(nullable, name):
			out = append(out, name)
		default:
			fe.Add(name, "must not be null")
		}
	}
	return out
}

// ParseID parses a path identifier.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

// body is a decoded, trimmed and tag-checked request body.
type body[T any] struct {
	value   T
	raw     map[string]json.RawMessage
	blanked []string
	errs    core.FieldErrors
}

// parseBody runs the common steps for every JSON body. A non-nil error is
// always ErrMalformedJSON; shape problems are collected in errs.
func parseBody[T any](data []byte, nullable []string) (*body[T], error) {
	b := &body[T]{errs: core.FieldErrors{}}
	raw, err := decodeBody(data, &b.value, b.errs)
	if err != nil {
		return nil, err
	}
	if _, notObject := b.errs[core.FormField]; notObject {
		return b, nil
	}
	b.raw = raw
	b.blanked = normalizeStrings(&b.value, nullable)
	check(&b.value, b.errs)
	return b, nil
}
