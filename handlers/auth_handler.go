package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"coveyTownAPI/internal/identity"
	"coveyTownAPI/internal/user"
	"coveyTownAPI/middleware"
	"coveyTownAPI/services"
)

// AccountStore mirrors identity accounts into the users table.
type AccountStore interface {
	UpsertUser(ctx context.Context, userID, email, displayName string) (*user.User, error)
	UpdateDisplayName(ctx context.Context, userID, displayName string) error
	DeleteUser(ctx context.Context, userID string) error
}

type AuthHandler struct {
	client   *identity.Client
	accounts AccountStore
}

func NewAuthHandler(client *identity.Client, accounts AccountStore) *AuthHandler {
	return &AuthHandler{
		client:   client,
		accounts: accounts,
	}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req identity.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.client.SignUp(ctx, req.Username, req.Email, req.Password)
	services.ObserveIdentityOperation("signup", err)
	if err != nil {
		respondWithIdentityError(w, err)
		return
	}

	h.completeSignIn(ctx, w, session)
}

func (h *AuthHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req identity.LogInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.client.LogIn(ctx, req.Email, req.Password)
	services.ObserveIdentityOperation("login", err)
	if err != nil {
		respondWithIdentityError(w, err)
		return
	}

	h.completeSignIn(ctx, w, session)
}

func (h *AuthHandler) SignInWithProvider(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req identity.ProviderSignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.client.SignInWithProvider(ctx, req.PostBody, req.RequestURI)
	services.ObserveIdentityOperation("provider", err)
	if err != nil {
		respondWithIdentityError(w, err)
		return
	}

	h.completeSignIn(ctx, w, session)
}

func (h *AuthHandler) LogOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	session, ok := h.resume(ctx, w, r)
	if !ok {
		return
	}

	err := h.client.LogOut(ctx, session)
	services.ObserveIdentityOperation("logout", err)
	if err != nil {
		respondWithIdentityError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	session, ok := h.resume(ctx, w, r)
	if !ok {
		return
	}
	userID := ""
	if session.Active() {
		userID = session.User().UserID
	}

	err := h.client.DeleteCurrentUser(ctx, session)
	services.ObserveIdentityOperation("delete", err)
	if err != nil {
		respondWithIdentityError(w, err)
		return
	}

	if err := h.accounts.DeleteUser(ctx, userID); err != nil {
		log.Printf("DeleteAccount: Failed to delete user row %s: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "Account deleted but user data could not be removed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req identity.UpdateUsernameRequest
	if err := decodeJSON(w, r, &req); err != nil || blank(req.Username) {
		respondWithError(w, http.StatusBadRequest, "username is required")
		return
	}

	session, ok := h.resume(ctx, w, r)
	if !ok {
		return
	}

	err := h.client.UpdateUsername(ctx, session, req.Username)
	services.ObserveIdentityOperation("update_username", err)
	if err != nil {
		respondWithIdentityError(w, err)
		return
	}

	cred := session.User()
	if err := h.accounts.UpdateDisplayName(ctx, cred.UserID, cred.DisplayName); err != nil && !errors.Is(err, services.ErrUserNotFound) {
		log.Printf("UpdateUsername: Failed to update user row %s: %v", cred.UserID, err)
	}

	respondWithJSON(w, http.StatusOK, identity.SessionResponse{Session: cred})
}

// resume rebuilds the caller's session from the request token. A missing token yields a
// nil session so the identity client reports the operation's own no-session message.
func (h *AuthHandler) resume(ctx context.Context, w http.ResponseWriter, r *http.Request) (*identity.Session, bool) {
	token, ok := middleware.GetSessionToken(r.Context())
	if !ok {
		token = middleware.SessionToken(r)
	}

	session, err := h.client.Resume(ctx, token)
	if err != nil {
		respondWithIdentityError(w, err)
		return nil, false
	}
	return session, true
}

func (h *AuthHandler) completeSignIn(ctx context.Context, w http.ResponseWriter, session *identity.Session) {
	cred := session.User()

	if _, err := h.accounts.UpsertUser(ctx, cred.UserID, cred.Email, cred.DisplayName); err != nil {
		log.Printf("completeSignIn: Failed to save user %s: %v", cred.UserID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save user")
		return
	}

	respondWithJSON(w, http.StatusOK, identity.SessionResponse{Session: cred})
}

func respondWithIdentityError(w http.ResponseWriter, err error) {
	var idErr *identity.Error
	if !errors.As(err, &idErr) {
		log.Printf("identity: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch idErr.Kind {
	case identity.KindValidation:
		respondWithError(w, http.StatusBadRequest, idErr.Message)
	case identity.KindConflict:
		respondWithError(w, http.StatusConflict, idErr.Message)
	case identity.KindUnauthorized, identity.KindNoSession:
		respondWithError(w, http.StatusUnauthorized, idErr.Message)
	default:
		respondWithError(w, http.StatusInternalServerError, idErr.Message)
	}
}
