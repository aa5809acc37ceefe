// Package httputil carries the JSON request/response helpers and
// middleware shared by every HTTP handler in the service.
package httputil

import (
	"encoding/json"
	"net/http"
)

// errorBody is the wire shape of every error the API returns.
type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON serializes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage responds with {"error": message} and the given status.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	// Encoding a flat struct cannot fail; the error is ignored.
	WriteJSON(w, status, errorBody{Error: message})
}

// WriteError responds with the error's text and the given status.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteSuccess responds 200 with the data as JSON.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated responds 201 with the data as JSON.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent responds 204 with an empty body.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteValidationError responds 400 for rejected input.
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteBadRequest responds 400.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteNotFoundError responds 404.
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict responds 409, used when a create collides with an
// existing name or a delete is blocked by dependents.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteInternalError responds 500 with the error's text.
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}
