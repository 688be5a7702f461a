package http

import (
	"errors"
	"io"
	"net/http"

	"saifuu/internal/validation"
)

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// readBody reads the whole request body, refusing anything over MaxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, validation.ErrMalformedJSON
	}
	return data, nil
}

// pathID parses the {id} wildcard of the matched route.
func pathID(r *http.Request) (int64, error) {
	return validation.ParseID(r.PathValue("id"))
}
