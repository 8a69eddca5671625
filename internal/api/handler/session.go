package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/api/middleware"
	"github.com/konect/konect/internal/api/models"
	"github.com/konect/konect/internal/api/response"
	"github.com/konect/konect/internal/session"
)

// SessionService is the pairing logic behind the session endpoints.
type SessionService interface {
	CheckDevice(ctx context.Context, deviceToken string) (*session.DeviceStatus, error)
	Register(ctx context.Context, sessionCode, deviceToken string) error
	RemoveDevice(ctx context.Context, deviceToken string) (int, error)
	TriggerAlert(ctx context.Context, sessionCode, senderToken string) (*session.AlertResult, error)
}

// SessionHandler handles the four pairing endpoints.
type SessionHandler struct {
	service SessionService
	logger  zerolog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(service SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

// CheckDevice handles POST /check-device.
func (h *SessionHandler) CheckDevice(w http.ResponseWriter, r *http.Request) {
	var req models.CheckDeviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if fe := required(field{"deviceToken", req.DeviceToken}); fe != nil {
		response.BadRequest(w, r, "deviceToken is required", fe)
		return
	}

	status, err := h.service.CheckDevice(r.Context(), req.DeviceToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.CheckDeviceResponse{
		Connected:    status.Connected,
		SessionCodes: status.SessionCodes,
	})
}

// Register handles POST /register.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	if fe := required(field{"sessionCode", req.SessionCode}, field{"deviceToken", req.DeviceToken}); fe != nil {
		response.BadRequest(w, r, "sessionCode and deviceToken are required", fe)
		return
	}

	if err := h.service.Register(r.Context(), req.SessionCode, req.DeviceToken); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Ack{
		Message:     "device registered",
		SessionCode: req.SessionCode,
	})
}

// RemoveDevice handles POST /remove-device.
func (h *SessionHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	var req models.RemoveDeviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if fe := required(field{"deviceToken", req.DeviceToken}); fe != nil {
		response.BadRequest(w, r, "deviceToken is required", fe)
		return
	}

	removed, err := h.service.RemoveDevice(r.Context(), req.DeviceToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.RemoveDeviceResponse{
		Ack:             models.Ack{Message: "device removed"},
		RemovedSessions: removed,
	})
}

// TriggerAlert handles POST /trigger-alert.
func (h *SessionHandler) TriggerAlert(w http.ResponseWriter, r *http.Request) {
	var req models.TriggerAlertRequest
	if !h.decode(w, r, &req) {
		return
	}
	if fe := required(field{"sessionCode", req.SessionCode}, field{"senderToken", req.SenderToken}); fe != nil {
		response.BadRequest(w, r, "sessionCode and senderToken are required", fe)
		return
	}

	result, err := h.service.TriggerAlert(r.Context(), req.SessionCode, req.SenderToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.TriggerAlertResponse{
		Ack:        models.Ack{Message: "alert sent", SessionCode: result.SessionCode},
		Recipients: result.Recipients,
		Delivered:  result.Delivered,
		Failed:     result.Failed,
	})
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := response.Decode(w, r, dst); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return false
	}
	return true
}

// writeError maps service errors onto problem responses.
func (h *SessionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, session.ErrSessionNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, session.ErrDeviceNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, session.ErrNotMember):
		response.Forbidden(w, r, err.Error())
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("session request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

type field struct {
	name  string
	value string
}

func required(fields ...field) []models.FieldError {
	var errs []models.FieldError
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, models.FieldError{
				Field:   f.name,
				Message: "must not be empty",
				Code:    models.CodeRequired,
			})
		}
	}
	return errs
}
