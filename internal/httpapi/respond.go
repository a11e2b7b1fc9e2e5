package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DoyleJ11/raffle-backend/internal/types"
	pub "github.com/DoyleJ11/raffle-backend/pkg/types"
	"go.uber.org/zap"
)

const (
	maxJSONBody = 32 << 20 // room for a full set of data URL logos

	codeTooLarge = "too_large"
)

// JSONResponse writes data as a JSON body with the given status.
func JSONResponse(w http.ResponseWriter, log *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode JSON response", zap.Error(err))
	}
}

func ErrorResponse(w http.ResponseWriter, log *zap.Logger, status int, code, message string) {
	JSONResponse(w, log, status, pub.ErrorResponse{Error: code, Message: message})
}

// ParseJSONBody decodes the request body into v.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError maps a domain error to its HTTP status.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := types.ErrorCode(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		ErrorResponse(w, log, status, code, "internal error")
		return
	}
	ErrorResponse(w, log, status, code, err.Error())
}

func writeBadBody(w http.ResponseWriter, log *zap.Logger, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		ErrorResponse(w, log, http.StatusRequestEntityTooLarge, codeTooLarge, err.Error())
		return
	}
	ErrorResponse(w, log, http.StatusBadRequest, types.CodeBadRequest, err.Error())
}

func statusFor(code string) int {
	switch code {
	case types.CodeInvalidRoster, types.CodeInvalidBranding, types.CodeInvalidCount:
		return http.StatusUnprocessableEntity
	case types.CodeWrongPhase, types.CodePoolExhausted:
		return http.StatusConflict
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeClosed:
		return http.StatusGone
	case types.CodeUnsupported, types.CodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
