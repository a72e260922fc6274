package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"coveyTownAPI/internal/types/friendship"
	"coveyTownAPI/services"
)

// FriendManager is the friend request workflow the handler drives.
type FriendManager interface {
	CreateRequest(ctx context.Context, requesterID, receiverID string) error
	ResolveRequest(ctx context.Context, requesterID, receiverID string, accept bool) (services.ResolveOutcome, error)
	ListRequests(ctx context.Context, userID string) (*friendship.RequestList, error)
	ListFriends(ctx context.Context, userID string) ([]friendship.UserSummary, error)
	RemoveFriend(ctx context.Context, userID, friendID string) error
	SearchUsers(ctx context.Context, term string) ([]friendship.UserSummary, error)
}

type FriendHandler struct {
	friendService FriendManager
}

func NewFriendHandler(friendService FriendManager) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
	}
}

func (h *FriendHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := mux.Vars(r)["userID"]

	friends, err := h.friendService.ListFriends(ctx, userID)
	if err != nil {
		log.Printf("GetFriends: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Error retrieving friendships: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, friends)
}

func (h *FriendHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var body friendship.CreateRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if blank(body.UserID1, body.UserID2) {
		respondWithError(w, http.StatusBadRequest, "userID1 and userID2 are required")
		return
	}

	err := h.friendService.CreateRequest(ctx, body.UserID1, body.UserID2)
	switch {
	case err == nil:
		respondWithMessage(w, http.StatusCreated, "Friend request created")
	case errors.Is(err, services.ErrSelfRequest),
		errors.Is(err, services.ErrRequestExists),
		errors.Is(err, services.ErrAlreadyFriends):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("CreateRequest: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Error creating friend request: "+err.Error())
	}
}

func (h *FriendHandler) GetRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := mux.Vars(r)["userID"]

	requests, err := h.friendService.ListRequests(ctx, userID)
	if err != nil {
		log.Printf("GetRequests: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Error retrieving friend requests: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

func (h *FriendHandler) ResolveRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var body friendship.ResolveRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if blank(body.RequesterID, body.ReceiverID) {
		respondWithError(w, http.StatusBadRequest, "requesterID and receiverID are required")
		return
	}

	outcome, err := h.friendService.ResolveRequest(ctx, body.RequesterID, body.ReceiverID, body.Accept)
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ResolveRequest: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Error resolving friend request: "+err.Error())
		return
	}

	if outcome == services.ResolveFriendshipCreated {
		respondWithMessage(w, http.StatusOK, "Friendship created")
		return
	}
	respondWithMessage(w, http.StatusOK, "Friend request deleted")
}

func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	err := h.friendService.RemoveFriend(ctx, userID, mux.Vars(r)["friendID"])
	if err != nil {
		if errors.Is(err, services.ErrFriendshipNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Error removing friend: "+err.Error())
		return
	}

	respondWithMessage(w, http.StatusOK, "Friend removed")
}

func (h *FriendHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	term := mux.Vars(r)["searchTerm"]

	users, err := h.friendService.SearchUsers(ctx, term)
	if err != nil {
		log.Printf("SearchUsers: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Error searching users: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, users)
}
