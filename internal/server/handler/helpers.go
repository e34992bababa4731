// Package handler contains the HTTP handlers for the read-only scan API.
// Every list endpoint responds with the same envelope:
//
//	{"success": true, "data": [...], "count": N}
package handler

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
)

// envelope is the uniform response shape for successful API calls.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Count   *int `json:"count,omitempty"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeData wraps data in the success envelope. Slices additionally carry a
// count field; a nil slice serializes as an empty array, never null.
func writeData(w http.ResponseWriter, data any) {
	env := envelope{Success: true, Data: data}

	rv := reflect.ValueOf(data)
	if rv.Kind() == reflect.Slice {
		n := rv.Len()
		env.Count = &n
		if rv.IsNil() {
			env.Data = []any{}
		}
	}

	writeJSON(w, http.StatusOK, env)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// parseLimit extracts the limit query parameter, falling back to def and
// clamping to a maximum of 500.
func parseLimit(r *http.Request, def int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
