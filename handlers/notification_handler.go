package handlers

import (
	"context"
	"net/http"
	"time"

	"habitSocialAPI/internal/types/notification"
)

type NotificationHandler struct {
	devices DeviceRegistrar
}

func NewNotificationHandler(devices DeviceRegistrar) *NotificationHandler {
	return &NotificationHandler{devices: devices}
}

// POST /api/v1/notifications/register-device
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req notification.RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.devices.RegisterDevice(ctx, me, req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device registered"})
}
