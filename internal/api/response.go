package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
)

type envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to encode response", slog.Any("error", err))
	}
}

func (s *Server) writeData(w http.ResponseWriter, status int, data interface{}) {
	s.writeJSON(w, status, envelope{OK: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	userMessage, retryable := s.errs.Handle(r.Context(), err)

	body := &errorBody{
		Kind:      string(apperrors.KindOf(err)),
		Message:   userMessage,
		Retryable: retryable,
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr != nil {
		body.Reason = appErr.Reason
		body.Field = appErr.Field
	}
	if body.Kind == "" {
		body.Kind = string(apperrors.KindUnavailable)
	}

	s.writeJSON(w, statusFor(apperrors.KindOf(err)), envelope{Error: body})
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindAlreadyDone, apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindPolicyViolation:
		return http.StatusUnprocessableEntity
	case apperrors.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewInvalidInput("body", "malformed request body")
	}

	return nil
}
