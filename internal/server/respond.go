package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/tournevent/integrations/pkg/integration"
	"github.com/tournevent/integrations/pkg/secret"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Kind      string        `json:"kind"`
	Message   string        `json:"message"`
	Provider  string        `json:"provider,omitempty"`
	Code      string        `json:"code,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
	Details   []fieldDetail `json:"details,omitempty"`
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	var ie *integration.Error
	if !errors.As(err, &ie) {
		return http.StatusInternalServerError
	}
	switch ie.Kind {
	case integration.KindValidation:
		return http.StatusBadRequest
	case integration.KindAuthentication:
		return http.StatusUnauthorized
	case integration.KindNotFound:
		return http.StatusNotFound
	case integration.KindConflict:
		return http.StatusConflict
	case integration.KindConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := apiError{Kind: "internal", Message: "internal error"}

	var ie *integration.Error
	switch {
	case errors.As(err, &ie):
		body = apiError{
			Kind:      string(ie.Kind),
			Message:   ie.Message,
			Provider:  ie.Provider,
			Code:      ie.Code,
			Retryable: ie.Retryable,
		}
	case errors.Is(err, secret.ErrDecryption):
		body.Message = "stored credentials could not be decrypted"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: body})
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: apiError{
			Kind:    string(integration.KindValidation),
			Message: msg,
		}})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validationError(err)})
		return false
	}
	return true
}

func validationError(err error) apiError {
	out := apiError{
		Kind:    string(integration.KindValidation),
		Message: "request validation failed",
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			out.Details = append(out.Details, fieldDetail{
				Field:   e.Namespace(),
				Message: validationMessage(e),
			})
		}
	}
	return out
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + e.Param() + " entries"
	case "len":
		return "must be exactly " + e.Param() + " characters"
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "email":
		return "must be a valid email address"
	default:
		return "failed " + e.Tag() + " validation"
	}
}

func unavailable(what string) error {
	return integration.NewError("", integration.KindConfiguration, what+" is not configured on this server")
}
