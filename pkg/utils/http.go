package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the machine-checkable error envelope. Kind is a stable,
// language-neutral identifier the API boundary (or a client) can translate
// to a localized message; Fields carries per-field validation problems.
type ErrorBody struct {
	Kind   string   `json:"kind"`
	Fields []string `json:"fields,omitempty"`
}

type envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *ErrorBody  `json:"error,omitempty"`
}

// JSONError writes a failed envelope with the given status and error kind.
func JSONError(w http.ResponseWriter, status int, kind string, fields ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{OK: false, Error: &ErrorBody{Kind: kind, Fields: fields}})
}

// JSONWrite writes a successful envelope with the given status code.
func JSONWrite(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(envelope{OK: true, Data: v})
}

// NoContent writes an empty success response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
