package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/speaklarity/platform/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error's code to an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeJSON(w, httpStatus(code), errorResponse{Error: err.Error(), Code: code.String()})
}

func writeTooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large", Code: apperrors.InvalidArgument.String()})
}

func httpStatus(c apperrors.Code) int {
	switch c {
	case apperrors.NotFound:
		return http.StatusNotFound
	case apperrors.InvalidArgument, apperrors.AudioInvalidFormat, apperrors.AudioEmptyInput:
		return http.StatusBadRequest
	case apperrors.JobBusy:
		return http.StatusConflict
	case apperrors.Unavailable:
		return http.StatusServiceUnavailable
	case apperrors.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
