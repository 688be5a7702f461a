package http

import (
	"errors"
	"fmt"
	"net/http"

	"saifuu/internal/core"
	applog "saifuu/internal/log"
	"saifuu/internal/middleware/trace"
	"saifuu/internal/validation"
)

const msgInternal = "An unexpected error occurred"

// writeError maps err onto the fixed failure vocabulary. entity names the
// resource in not-found and conflict messages, e.g. "Category".
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, entity, op string, err error) {
	resp, errType := s.errorResponse(entity, err)

	fields := applog.NewFields().
		WithOperation(op).
		WithErrorType(errType).
		WithError(err).
		WithHTTPRequest(r.Method, r.URL.Path)
	logger := applog.FromContext(r.Context())
	if errType == applog.ErrorTypeInternal {
		fields.WithRequestID(trace.GetRequestID(r.Context()))
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}

	resp.Write(w)
}

// found turns the storage layer's nil, nil for a missing row into
// core.ErrNotFound.
func found[T any](v *T, err error) (*T, error) {
	if err == nil && v == nil {
		return nil, core.ErrNotFound
	}
	return v, err
}

func (s *Server) errorResponse(entity string, err error) (*ResponseBuilder, string) {
	if errors.Is(err, validation.ErrMalformedJSON) {
		return NewErrorResponse(http.StatusBadRequest, "Invalid JSON in request body"), applog.ErrorTypeMalformed
	}
	if errors.Is(err, errBodyTooLarge) {
		return NewErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large"), applog.ErrorTypeMalformed
	}
	if ve, ok := core.AsValidation(err); ok {
		return NewErrorResponse(http.StatusBadRequest, "Validation failed").Details(ve.Fields), applog.ErrorTypeValidation
	}
	if errors.Is(err, core.ErrNotFound) {
		return NewErrorResponse(http.StatusNotFound, entity+" not found"), applog.ErrorTypeNotFound
	}

	var inUse *core.InUseError
	if errors.As(err, &inUse) {
		return NewErrorResponse(http.StatusConflict, entity+" is in use and cannot be deleted").
			Details(core.FieldErrors{core.FormField: {
				fmt.Sprintf("referenced by %d transactions and %d subscriptions", inUse.Transactions, inUse.Subscriptions),
			}}), applog.ErrorTypeConflict
	}
	switch {
	case errors.Is(err, core.ErrInUse):
		return NewErrorResponse(http.StatusConflict, entity+" is in use and cannot be deleted"), applog.ErrorTypeConflict
	case errors.Is(err, core.ErrDuplicate):
		return NewErrorResponse(http.StatusConflict, entity+" with this name already exists"), applog.ErrorTypeConflict
	case errors.Is(err, core.ErrConflict):
		return NewErrorResponse(http.StatusConflict, entity+" was modified concurrently"), applog.ErrorTypeConflict
	}

	resp := NewErrorResponse(http.StatusInternalServerError, msgInternal)
	if s.debugErrors {
		resp.Debug(err.Error())
	}
	return resp, applog.ErrorTypeInternal
}
