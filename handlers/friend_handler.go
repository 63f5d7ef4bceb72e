package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"habitSocialAPI/internal/types/friendship"
	"habitSocialAPI/utils"
)

type FriendHandler struct {
	friendService FriendService
}

func NewFriendHandler(friendService FriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

// GET /api/v1/friends
func (h *FriendHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	friends, err := h.friendService.ListFriends(ctx, me)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, friends)
}

// DELETE /api/v1/friends/{friendId}
func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}
	friendID, ok := pathUUID(w, r, "friendId")
	if !ok {
		return
	}

	if err := h.friendService.RemoveFriend(ctx, me, friendID); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	utils.Logger.Info("friend removed", zap.String("user_id", me.String()), zap.String("friend_id", friendID.String()))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend removed successfully"})
}

// POST /api/v1/friends/requests
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req friendship.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fr, err := h.friendService.SendRequest(ctx, me, req.ToUsername, req.Message)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, fr)
}

// GET /api/v1/friends/requests/incoming
func (h *FriendHandler) GetIncoming(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	requests, err := h.friendService.ListIncoming(ctx, me)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

// GET /api/v1/friends/requests/outgoing
func (h *FriendHandler) GetOutgoing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	requests, err := h.friendService.ListOutgoing(ctx, me)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

// POST /api/v1/friends/requests/{id}/accept
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
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

	if err := h.friendService.AcceptRequest(ctx, me, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend request accepted"})
}

// POST /api/v1/friends/requests/{id}/decline
func (h *FriendHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
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

	if err := h.friendService.DeclineRequest(ctx, me, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend request declined"})
}

// DELETE /api/v1/friends/requests/outgoing/{username}
func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	me, ok := currentUser(w, r)
	if !ok {
		return
	}

	username := mux.Vars(r)["username"]
	if username == "" {
		respondWithError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := h.friendService.CancelRequest(ctx, me, username); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend request cancelled"})
}
