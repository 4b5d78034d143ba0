// Package response writes the JSON envelopes used by every API endpoint.
// Success bodies nest under "data", failures under "error", so clients can
// branch on a single top-level key.
package response

import (
	"encoding/json"
	"net/http"
)

// PaginationMeta describes the page window of a collection response.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

type successBody struct {
	Data any             `json:"data"`
	Meta *PaginationMeta `json:"meta,omitempty"`
}

type failureBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data with a 200 status.
func JSON(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, successBody{Data: data})
}

// Created writes data with a 201 status.
func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, successBody{Data: data})
}

// Accepted writes data with a 202 status, used when a run is queued
// but not yet analyzed.
func Accepted(w http.ResponseWriter, data any) {
	write(w, http.StatusAccepted, successBody{Data: data})
}

// Collection writes a paginated list with its meta block.
func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	write(w, http.StatusOK, successBody{Data: data, Meta: &meta})
}

// Error writes a machine-readable error code plus a human message.
// Details is optional structured context (validation fields, health checks).
func Error(w http.ResponseWriter, status int, code, message string, details any) {
	write(w, status, failureBody{Error: apiError{Code: code, Message: message, Details: details}})
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
