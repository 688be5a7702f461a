// Package http serves the JSON API.
//
// Every response, success or failure, is a single Envelope so clients can
// branch on success before looking at anything else.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"

	"saifuu/internal/core"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success    bool             `json:"success"`
	Data       any              `json:"data,omitempty"`
	Message    string           `json:"message,omitempty"`
	Count      *int             `json:"count,omitempty"`
	Pagination *core.Pagination `json:"pagination,omitempty"`
	Filters    any              `json:"filters,omitempty"`
	Sort       *core.Sort       `json:"sort,omitempty"`
	Error      string           `json:"error,omitempty"`
	Details    core.FieldErrors `json:"details,omitempty"`
	Debug      string           `json:"debug,omitempty"`
}

// ResponseBuilder assembles an Envelope and its status code.
type ResponseBuilder struct {
	status  int
	env     Envelope
	headers map[string]string
}

// NewResponse starts a 200 success response.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		status:  http.StatusOK,
		env:     Envelope{Success: true},
		headers: make(map[string]string),
	}
}

// NewErrorResponse starts a failure response with the given status.
func NewErrorResponse(status int, msg string) *ResponseBuilder {
	b := NewResponse()
	b.status = status
	b.env.Success = false
	b.env.Error = msg
	return b
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.status = code
	return b
}

func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.env.Data = v
	return b
}

func (b *ResponseBuilder) Message(msg string) *ResponseBuilder {
	b.env.Message = msg
	return b
}

// List sets data to items and count to its length. A nil slice is sent as [].
func (b *ResponseBuilder) List(items any) *ResponseBuilder {
	v := reflect.ValueOf(items)
	n := 0
	if v.Kind() == reflect.Slice {
		if v.IsNil() {
			items = reflect.MakeSlice(v.Type(), 0, 0).Interface()
		}
		n = v.Len()
	}
	b.env.Data = items
	b.env.Count = &n
	return b
}

func (b *ResponseBuilder) Paginate(p core.Pagination) *ResponseBuilder {
	b.env.Pagination = &p
	return b
}

func (b *ResponseBuilder) Filters(f any) *ResponseBuilder {
	b.env.Filters = f
	return b
}

func (b *ResponseBuilder) Sort(s core.Sort) *ResponseBuilder {
	b.env.Sort = &s
	return b
}

func (b *ResponseBuilder) Details(fe core.FieldErrors) *ResponseBuilder {
	b.env.Details = fe
	return b
}

func (b *ResponseBuilder) Debug(msg string) *ResponseBuilder {
	b.env.Debug = msg
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the response. Encoding failures can only be logged since the
// status line is already out.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.status)
	if err := json.NewEncoder(w).Encode(b.env); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
