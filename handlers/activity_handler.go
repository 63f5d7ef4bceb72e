package handlers

import (
	"context"
	"net/http"
	"time"

	"habitSocialAPI/internal/types/activity"
)

type ActivityHandler struct {
	activityService ActivityService
}

func NewActivityHandler(activityService ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// GET /api/v1/activities?scope=friends|user:{id}
func (h *ActivityHandler) GetActivities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	scope := activity.Scope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = activity.ScopeFriends
	}

	activities, err := h.activityService.List(ctx, me, scope)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, activities)
}
