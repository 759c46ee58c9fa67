// Package httputil holds small helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// FieldError writes a JSON error response scoped to a form field and its
// region, so clients can show exactly one message per form region.
func FieldError(w http.ResponseWriter, status int, field, region, message string) {
	JSON(w, status, map[string]string{
		"error":  message,
		"field":  field,
		"region": region,
	})
}
