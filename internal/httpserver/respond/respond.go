// Package respond writes the JSON envelope shared by every /api route.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	"github.com/MrSnakeDoc/sigdesk/internal/version"
)

// Envelope is the body of every API response.
type Envelope struct {
	Response      any    `json:"api_response"`
	ErrorMessage  string `json:"api_error_message"`
	ServerVersion string `json:"api_server_version"`
	StatusCode    int    `json:"api_status_code"`
}

// MaxBodyBytes bounds request bodies decoded by Decode.
const MaxBodyBytes = 16 << 20

// JSON writes data in the envelope with the given status.
func JSON(w http.ResponseWriter, status int, data any, errMsg string) {
	if data == nil {
		data = ""
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Response:      data,
		ErrorMessage:  errMsg,
		ServerVersion: version.Server(),
		StatusCode:    status,
	})
}

// OK writes a 200 envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data, "")
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden), errors.Is(err, apperr.ErrInvalidStatus):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrEmptyInput),
		errors.Is(err, apperr.ErrNotSignatureGenerating),
		errors.Is(err, apperr.ErrSubmission):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err in the envelope. data is sent as api_response, as some
// routes answer {"success": false} alongside the message. Errors without a
// kind are logged and hidden from the caller.
func Error(w http.ResponseWriter, r *http.Request, log logger.Logger, err error, data any) {
	status := StatusFor(err)
	msg := apperr.Message(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		msg = "Internal server error"
	}
	JSON(w, status, data, msg)
}

// File sends blob as an attachment.
func File(w http.ResponseWriter, name, contentType string, blob []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// Decode reads a JSON body into v. A malformed body is an EmptyInput error.
func Decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Errorf(apperr.ErrEmptyInput, "A JSON body is required.")
		}
		return apperr.Errorf(apperr.ErrEmptyInput, "Invalid JSON body: %v", err)
	}
	return nil
}
