package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"coveyTownAPI/internal/notification"
	"coveyTownAPI/middleware"
	"coveyTownAPI/services"
)

type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, userID string, req notification.RegisterDeviceRequest) error
}

type NotificationHandler struct {
	service DeviceRegistrar
}

func NewNotificationHandler(service DeviceRegistrar) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req notification.RegisterDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.service.RegisterDevice(ctx, userID, req)
	switch {
	case err == nil:
		respondWithMessage(w, http.StatusCreated, "Device registered")
	case errors.Is(err, services.ErrInvalidDevice):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("RegisterDevice: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to register device")
	}
}
