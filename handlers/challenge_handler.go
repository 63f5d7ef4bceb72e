package handlers

import (
	"context"
	"net/http"
	"time"

	"habitSocialAPI/internal/types/challenge"
)

type ChallengeHandler struct {
	challengeService ChallengeService
}

func NewChallengeHandler(challengeService ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

// GET /api/v1/challenges?filter=all|mine|public
func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	filter := challenge.Filter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = challenge.FilterAll
	}

	challenges, err := h.challengeService.List(ctx, me, filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

// POST /api/v1/challenges
func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req challenge.CreateChallengeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.challengeService.Create(ctx, me, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// POST /api/v1/challenges/{id}/join
func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	participant, err := h.challengeService.Join(ctx, me, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, participant)
}

// DELETE /api/v1/challenges/{id}/join
func (h *ChallengeHandler) LeaveChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.challengeService.Leave(ctx, me, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Left challenge"})
}

type progressRequest struct {
	Value *int `json:"value" validate:"required"`
}

// POST /api/v1/challenges/{id}/progress
func (h *ChallengeHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req progressRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	participant, err := h.challengeService.UpdateProgress(ctx, me, id, *req.Value)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, participant)
}
