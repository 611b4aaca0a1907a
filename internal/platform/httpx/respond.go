package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// MaxBodyBytes caps decoded request bodies.
const MaxBodyBytes = 1 << 20

// Failure is the envelope returned for every unsuccessful request.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Fail sends {success:false, error:message}.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Failure{Success: false, Error: message})
}

// DecodeJSON decodes the request body into target. Unknown fields are
// ignored; syntax errors, empty bodies and oversized bodies wrap ErrMalformed.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer func() {
		_ = body.Close()
	}()
	dec := json.NewDecoder(body)
	if err := dec.Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body exceeds %d bytes", ErrMalformed, maxErr.Limit)
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
