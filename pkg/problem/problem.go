// Package problem emits RFC 7807 problem+json responses with trace
// identifiers, shared by the gateway, issuer and catalog services.
package problem

import (
	"encoding/json"
	"net/http"
)

// Response represents an RFC 7807 problem document.
type Response struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"traceId,omitempty"`
}

// Write emits a problem+json response.
func Write(w http.ResponseWriter, status int, title, detail, traceID, instance string) {
	resp := Response{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
		TraceID:  traceID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteUnauthorized emits a 401 with the Bearer challenge the edge contract
// requires. The detail stays generic so internal state never leaks.
func WriteUnauthorized(w http.ResponseWriter, detail, traceID, instance string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	Write(w, http.StatusUnauthorized, "Authentication Required", detail, traceID, instance)
}
