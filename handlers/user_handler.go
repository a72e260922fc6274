package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"coveyTownAPI/internal/stats"
	"coveyTownAPI/internal/user"
	"coveyTownAPI/middleware"
	"coveyTownAPI/services"
)

type UserStore interface {
	GetUserStats(ctx context.Context, userID string) (*stats.UserStats, error)
	ListRecentlyVisited(ctx context.Context, userID string) ([]stats.TownVisitSummary, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	RecordTownVisit(ctx context.Context, userID, townID string) error
	RecordGame(ctx context.Context, userID, gameID string, win bool) error
	RegisterPlayer(ctx context.Context, userID, displayName string) (*user.User, error)
	EndSession(ctx context.Context, userID string, seconds float64) error
}

type UserHandler struct {
	userService UserStore
}

func NewUserHandler(userService UserStore) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := mux.Vars(r)["userID"]

	userStats, err := h.userService.GetUserStats(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusBadRequest, "Invalid values specified")
			return
		}
		log.Printf("GetUserStats: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get user stats")
		return
	}

	respondWithJSON(w, http.StatusOK, userStats)
}

func (h *UserHandler) GetRecentlyVisitedTowns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := mux.Vars(r)["userID"]

	towns, err := h.userService.ListRecentlyVisited(ctx, userID)
	if err != nil {
		log.Printf("GetRecentlyVisitedTowns: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get recently visited towns")
		return
	}

	respondWithJSON(w, http.StatusOK, towns)
}

func (h *UserHandler) UsernameExists(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	username := mux.Vars(r)["username"]

	exists, err := h.userService.UsernameExists(ctx, username)
	if err != nil {
		log.Printf("UsernameExists: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to check username")
		return
	}

	respondWithJSON(w, http.StatusOK, exists)
}

func (h *UserHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	var req user.RecordVisitRequest
	if err := decodeJSON(w, r, &req); err != nil || blank(req.TownID) {
		respondWithError(w, http.StatusBadRequest, "townId is required")
		return
	}

	err := h.userService.RecordTownVisit(ctx, userID, req.TownID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTownNotFound), errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, err.Error())
		default:
			log.Printf("RecordVisit: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to record visit")
		}
		return
	}

	respondWithMessage(w, http.StatusCreated, "Visit recorded")
}

func (h *UserHandler) RecordGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	var req user.RecordGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.userService.RecordGame(ctx, userID, req.GameID, req.Win)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidGame):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, err.Error())
		default:
			log.Printf("RecordGame: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to record game")
		}
		return
	}

	respondWithMessage(w, http.StatusCreated, "Game recorded")
}

// StartSession registers the player when they join a town.
func (h *UserHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	var req user.RegisterPlayerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	player, err := h.userService.RegisterPlayer(ctx, userID, req.DisplayName)
	if err != nil {
		log.Printf("StartSession: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to register player")
		return
	}

	respondWithJSON(w, http.StatusOK, player)
}

func (h *UserHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := requireSelf(w, r)
	if !ok {
		return
	}

	var req user.EndSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.userService.EndSession(ctx, userID, req.Duration)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDuration):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, err.Error())
		default:
			log.Printf("EndSession: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to end session")
		}
		return
	}

	respondWithMessage(w, http.StatusOK, "Session ended")
}

// requireSelf checks that the authenticated caller is the {userID} in the path.
func requireSelf(w http.ResponseWriter, r *http.Request) (string, bool) {
	callerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}

	userID := mux.Vars(r)["userID"]
	if callerID != userID {
		respondWithError(w, http.StatusForbidden, "Cannot modify another user")
		return "", false
	}
	return userID, true
}
