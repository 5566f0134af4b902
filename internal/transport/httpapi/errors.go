package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"registra/internal/credential/service"
	dErrors "registra/pkg/domain-errors"
)

type errorResponse struct {
	Error       string   `json:"error"`
	Description string   `json:"error_description,omitempty"`
	FailedRules []string `json:"failed_rules,omitempty"`
}

// statusFor maps error codes onto HTTP statuses.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders the JSON error envelope. Internal errors carry no
// description so infrastructure details never leak to callers; complexity
// failures attach the failed rule names for the caller to act on.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)

	body := errorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		body.Description = dErrors.MessageOf(err)
	}

	var complexity *service.ComplexityError
	if errors.As(err, &complexity) {
		body.Description = "password does not meet complexity requirements"
		body.FailedRules = complexity.Failed
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
