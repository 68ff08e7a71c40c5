/*
Package resp writes the standard JSON envelope used by every HTTP endpoint.

Success bodies are {code: 0, msg: "success", data}; error bodies are
{code, msg[, data]} with the HTTP status taken from the error's Kind.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/logx"
)

// JSONResponse is the envelope returned to clients.
type JSONResponse struct {
	// Code is 0 on success, otherwise an errs code.
	Code int `json:"code"`

	// Msg is the client-facing status description or error message.
	Msg string `json:"msg"`

	// Data is the optional payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON sets the content headers and writes payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus, "uri", r.RequestURI)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}

// RespondSuccess sends data with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondStatus(w, r, http.StatusOK, data)
}

// RespondStatus sends data with a custom success status (e.g. 201 Created).
func RespondStatus(w http.ResponseWriter, r *http.Request, status int, data any) {
	RespondJSON(w, r, status, JSONResponse{Code: 0, Msg: "success", Data: data})
}

// RespondError sends err using its code, message and status. Non-CustomErrors are wrapped.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	RespondErrorWithData(w, r, err, nil)
}

// RespondErrorWithData sends err along with a data payload describing partial results.
func RespondErrorWithData(w http.ResponseWriter, r *http.Request, err error, data any) {
	customErr := errs.Wrap(err)
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{
		Code: customErr.Code,
		Msg:  customErr.Message,
		Data: data,
	})
}
