package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"coveyTownAPI/internal/types/town"
	"coveyTownAPI/services"
)

type TownHandler struct {
	towns *services.TownsStore
}

func NewTownHandler(towns *services.TownsStore) *TownHandler {
	return &TownHandler{towns: towns}
}

func (h *TownHandler) ListTowns(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.towns.ListTowns())
}

func (h *TownHandler) CreateTown(w http.ResponseWriter, r *http.Request) {
	var req town.CreateTownRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.towns.CreateTown(req.FriendlyName, req.IsPublic)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *TownHandler) DeleteTown(w http.ResponseWriter, r *http.Request) {
	townID := mux.Vars(r)["townID"]

	var req town.DeleteTownRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.towns.DeleteTown(townID, req.TownUpdatePassword)
	switch {
	case err == nil:
		respondWithMessage(w, http.StatusOK, "Town deleted")
	case errors.Is(err, services.ErrTownNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidTownPassword):
		respondWithError(w, http.StatusForbidden, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
