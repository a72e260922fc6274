package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coveyTownAPI/internal/identity"
	"coveyTownAPI/internal/notification"
	"coveyTownAPI/internal/stats"
	"coveyTownAPI/internal/types/friendship"
	"coveyTownAPI/internal/user"
	"coveyTownAPI/services"
)

type fakeFriends struct {
	createErr  error
	resolveErr error
	outcome    services.ResolveOutcome
	removeErr  error
	friends    []friendship.UserSummary
	created    [][2]string
	removed    [][2]string
}

func (f *fakeFriends) CreateRequest(ctx context.Context, a, b string) error {
	f.created = append(f.created, [2]string{a, b})
	return f.createErr
}

func (f *fakeFriends) ResolveRequest(ctx context.Context, requesterID, receiverID string, accept bool) (services.ResolveOutcome, error) {
	return f.outcome, f.resolveErr
}

func (f *fakeFriends) ListRequests(ctx context.Context, userID string) (*friendship.RequestList, error) {
	return &friendship.RequestList{Incoming: []friendship.IncomingRequest{}, Outgoing: []friendship.OutgoingRequest{}}, nil
}

func (f *fakeFriends) ListFriends(ctx context.Context, userID string) ([]friendship.UserSummary, error) {
	return f.friends, nil
}

func (f *fakeFriends) RemoveFriend(ctx context.Context, a, b string) error {
	f.removed = append(f.removed, [2]string{a, b})
	return f.removeErr
}

func (f *fakeFriends) SearchUsers(ctx context.Context, term string) ([]friendship.UserSummary, error) {
	return []friendship.UserSummary{}, nil
}

type fakeUsers struct {
	stats      *stats.UserStats
	statsErr   error
	visits     []stats.TownVisitSummary
	exists     bool
	recorded   []string
	sessionSec float64
	accounts   map[string]string
	deleteErr  error
}

func (f *fakeUsers) GetUserStats(ctx context.Context, userID string) (*stats.UserStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeUsers) ListRecentlyVisited(ctx context.Context, userID string) ([]stats.TownVisitSummary, error) {
	return f.visits, nil
}

func (f *fakeUsers) UsernameExists(ctx context.Context, username string) (bool, error) {
	return f.exists, nil
}

func (f *fakeUsers) RecordTownVisit(ctx context.Context, userID, townID string) error {
	if townID == "missing" {
		return services.ErrTownNotFound
	}
	f.recorded = append(f.recorded, townID)
	return nil
}

func (f *fakeUsers) RecordGame(ctx context.Context, userID, gameID string, win bool) error {
	if gameID == "" {
		return services.ErrInvalidGame
	}
	return nil
}

func (f *fakeUsers) RegisterPlayer(ctx context.Context, userID, displayName string) (*user.User, error) {
	return &user.User{ID: userID, DisplayName: &displayName}, nil
}

func (f *fakeUsers) EndSession(ctx context.Context, userID string, seconds float64) error {
	if seconds < 0 {
		return services.ErrInvalidDuration
	}
	f.sessionSec = seconds
	return nil
}

func (f *fakeUsers) UpsertUser(ctx context.Context, userID, email, displayName string) (*user.User, error) {
	if f.accounts == nil {
		f.accounts = make(map[string]string)
	}
	f.accounts[userID] = displayName
	return &user.User{ID: userID}, nil
}

func (f *fakeUsers) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	f.accounts[userID] = displayName
	return nil
}

func (f *fakeUsers) DeleteUser(ctx context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.accounts, userID)
	return nil
}

type fakeDevices struct {
	registered []notification.RegisterDeviceRequest
}

func (f *fakeDevices) RegisterDevice(ctx context.Context, userID string, req notification.RegisterDeviceRequest) error {
	if !notification.ValidPlatform(req.Platform) {
		return services.ErrInvalidDevice
	}
	f.registered = append(f.registered, req)
	return nil
}

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

type testServer struct {
	router  *mux.Router
	friends *fakeFriends
	users   *fakeUsers
	devices *fakeDevices
	towns   *services.TownsStore
	idp     *identity.MemoryProvider
}

func newTestServer() *testServer {
	s := &testServer{
		friends: &fakeFriends{},
		users:   &fakeUsers{},
		devices: &fakeDevices{},
		towns:   services.NewTownsStore(),
		idp:     identity.NewMemoryProvider(),
	}
	s.router = NewRouter(RouterDeps{
		Friends:       NewFriendHandler(s.friends),
		Users:         NewUserHandler(s.users),
		Towns:         NewTownHandler(s.towns),
		Auth:          NewAuthHandler(identity.NewClient(s.idp), s.users),
		Notifications: NewNotificationHandler(s.devices),
		Verifier:      staticVerifier{"token-a": "user-a"},
	})
	return s
}

func (s *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst))
}

func TestCreateFriendRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"created", nil, http.StatusCreated},
		{"self", services.ErrSelfRequest, http.StatusBadRequest},
		{"duplicate", services.ErrRequestExists, http.StatusBadRequest},
		{"already friends", services.ErrAlreadyFriends, http.StatusBadRequest},
		{"missing user", services.ErrUserNotFound, http.StatusNotFound},
		{"database", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.friends.createErr = tt.err

			rr := s.do(http.MethodPost, "/api/friends/requests", friendship.CreateRequestBody{UserID1: "a", UserID2: "b"}, nil)
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestCreateFriendRequest_MissingIDs(t *testing.T) {
	s := newTestServer()

	rr := s.do(http.MethodPost, "/api/friends/requests", map[string]string{"userID1": "a"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, s.friends.created)
}

func TestResolveFriendRequest(t *testing.T) {
	body := friendship.ResolveRequestBody{RequesterID: "a", ReceiverID: "b", Accept: true}

	t.Run("accepted", func(t *testing.T) {
		s := newTestServer()
		s.friends.outcome = services.ResolveFriendshipCreated

		rr := s.do(http.MethodPatch, "/api/friends/requests", body, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp map[string]string
		decodeBody(t, rr, &resp)
		assert.Equal(t, "Friendship created", resp["message"])
	})

	t.Run("rejected", func(t *testing.T) {
		s := newTestServer()
		s.friends.outcome = services.ResolveRequestDeleted

		rr := s.do(http.MethodPatch, "/api/friends/requests", body, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp map[string]string
		decodeBody(t, rr, &resp)
		assert.Equal(t, "Friend request deleted", resp["message"])
	})

	t.Run("no such request", func(t *testing.T) {
		s := newTestServer()
		s.friends.resolveErr = services.ErrRequestNotFound

		rr := s.do(http.MethodPatch, "/api/friends/requests", body, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestFriendRoutes(t *testing.T) {
	s := newTestServer()
	name := "bob"
	s.friends.friends = []friendship.UserSummary{{ID: "b", DisplayName: &name}}

	rr := s.do(http.MethodGet, "/api/friends/a", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var friends []friendship.UserSummary
	decodeBody(t, rr, &friends)
	require.Len(t, friends, 1)
	assert.Equal(t, "b", friends[0].ID)

	rr = s.do(http.MethodGet, "/api/friends/requests/a", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"incoming": [], "outgoing": []}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/friends/search/bo", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	auth := map[string]string{"X-Session-Token": "token-a"}
	rr = s.do(http.MethodDelete, "/api/friends/user-a/b", nil, auth)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, [][2]string{{"user-a", "b"}}, s.friends.removed)

	s.friends.removeErr = services.ErrFriendshipNotFound
	rr = s.do(http.MethodDelete, "/api/friends/user-a/b", nil, auth)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRemoveFriend_RequiresOwnSession(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"unknown token", map[string]string{"X-Session-Token": "forged"}, http.StatusUnauthorized},
		{"other user's token", map[string]string{"X-Session-Token": "token-a"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()

			rr := s.do(http.MethodDelete, "/api/friends/user-b/user-c", nil, tt.headers)
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Empty(t, s.friends.removed)
		})
	}
}

func TestGetUserStats(t *testing.T) {
	t.Run("known user", func(t *testing.T) {
		s := newTestServer()
		s.users.stats = &stats.UserStats{
			FirstJoined: "Tue Mar 05 2024",
			TimeSpent:   100,
			GameRecords: []stats.GameSummary{{GameName: "TicTacToe", Wins: 2, Losses: 1}},
		}

		rr := s.do(http.MethodGet, "/users/u1/userStats", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{
			"firstJoined": "Tue Mar 05 2024",
			"timeSpent": 100,
			"gameRecords": [{"gameName": "TicTacToe", "wins": 2, "losses": 1}]
		}`, rr.Body.String())
	})

	t.Run("unknown user", func(t *testing.T) {
		s := newTestServer()
		s.users.statsErr = services.ErrUserNotFound

		rr := s.do(http.MethodGet, "/users/nobody/userStats", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error": "Invalid values specified"}`, rr.Body.String())
	})

	t.Run("session token is checked when sent", func(t *testing.T) {
		s := newTestServer()
		s.users.stats = &stats.UserStats{GameRecords: []stats.GameSummary{}}

		rr := s.do(http.MethodGet, "/users/u1/userStats", nil, map[string]string{"X-Session-Token": "token-a"})
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = s.do(http.MethodGet, "/users/u1/userStats", nil, map[string]string{"X-Session-Token": "forged"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = s.do(http.MethodGet, "/users/u1/recentlyVisitedTowns", nil, map[string]string{"Authorization": "Bearer forged"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRecentlyVisitedTowns(t *testing.T) {
	s := newTestServer()
	visited := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.users.visits = []stats.TownVisitSummary{{TownID: "t1", LastVisited: visited}}

	rr := s.do(http.MethodGet, "/users/u1/recentlyVisitedTowns", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"townId": "t1", "lastVisited": "2024-01-01T10:00:00Z"}]`, rr.Body.String())
}

func TestUsernameExists(t *testing.T) {
	s := newTestServer()
	s.users.exists = true

	rr := s.do(http.MethodGet, "/users/exists/alice", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Body.String())
}

func TestUserWrites_RequireOwnSession(t *testing.T) {
	s := newTestServer()
	visit := user.RecordVisitRequest{TownID: "t1"}

	rr := s.do(http.MethodPost, "/users/user-a/visits", visit, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/users/user-b/visits", visit, map[string]string{"X-Session-Token": "token-a"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(http.MethodPost, "/users/user-a/visits", visit, map[string]string{"X-Session-Token": "token-a"})
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, []string{"t1"}, s.users.recorded)

	rr = s.do(http.MethodPost, "/users/user-a/visits", user.RecordVisitRequest{TownID: "missing"}, map[string]string{"X-Session-Token": "token-a"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserSessions(t *testing.T) {
	s := newTestServer()
	auth := map[string]string{"Authorization": "Bearer token-a"}

	rr := s.do(http.MethodPost, "/users/user-a/sessions", user.RegisterPlayerRequest{DisplayName: "alice"}, auth)
	require.Equal(t, http.StatusOK, rr.Code)
	var u user.User
	decodeBody(t, rr, &u)
	assert.Equal(t, "user-a", u.ID)

	rr = s.do(http.MethodPatch, "/users/user-a/sessions", user.EndSessionRequest{Duration: 90.7}, auth)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 90.7, s.users.sessionSec)

	rr = s.do(http.MethodPatch, "/users/user-a/sessions", user.EndSessionRequest{Duration: -1}, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/users/user-a/gameRecords", user.RecordGameRequest{GameID: "TicTacToe", Win: true}, auth)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(http.MethodPost, "/users/user-a/gameRecords", user.RecordGameRequest{}, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTownRoutes(t *testing.T) {
	s := newTestServer()

	rr := s.do(http.MethodPost, "/towns", map[string]interface{}{"friendlyName": "Lobby", "isPublic": true}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		TownID             string `json:"townID"`
		TownUpdatePassword string `json:"townUpdatePassword"`
	}
	decodeBody(t, rr, &created)
	require.NotEmpty(t, created.TownID)

	rr = s.do(http.MethodGet, "/towns", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), created.TownID)

	rr = s.do(http.MethodDelete, "/towns/"+created.TownID, map[string]string{"townUpdatePassword": "nope"}, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(http.MethodDelete, "/towns/"+created.TownID, map[string]string{"townUpdatePassword": created.TownUpdatePassword}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodDelete, "/towns/"+created.TownID, map[string]string{"townUpdatePassword": created.TownUpdatePassword}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer()

	rr := s.do(http.MethodPost, "/auth/signup", identity.SignUpRequest{Username: "alice", Email: "alice@example.com", Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp identity.SessionResponse
	decodeBody(t, rr, &resp)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "alice@example.com", resp.Session.Email)
	assert.Equal(t, "alice", resp.Session.DisplayName)
	assert.Equal(t, "alice", s.users.accounts[resp.Session.UserID])

	rr = s.do(http.MethodPost, "/auth/signup", identity.SignUpRequest{Username: "alice", Email: "alice@example.com", Password: "password123"}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(http.MethodPost, "/auth/signup", identity.SignUpRequest{Username: "x", Email: "bad email", Password: "password123"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error": "The email address is not valid."}`, rr.Body.String())

	rr = s.do(http.MethodPost, "/auth/login", identity.LogInRequest{Email: "alice@example.com", Password: "wrong-password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/auth/login", identity.LogInRequest{Email: "alice@example.com", Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &resp)
	token := map[string]string{"X-Session-Token": resp.Session.IDToken}

	rr = s.do(http.MethodPatch, "/auth/username", identity.UpdateUsernameRequest{Username: "alice2"}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice2", s.users.accounts[resp.Session.UserID])

	rr = s.do(http.MethodPost, "/auth/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(http.MethodPost, "/auth/logout", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_NoSession(t *testing.T) {
	s := newTestServer()

	rr := s.do(http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error": "Attempted to sign out, but no user is currently signed in."}`, rr.Body.String())

	rr = s.do(http.MethodDelete, "/auth/account", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error": "Attempted to delete the user, but no user is currently signed in."}`, rr.Body.String())

	rr = s.do(http.MethodPatch, "/auth/username", identity.UpdateUsernameRequest{Username: "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error": "Couldn't update the username. No user currently signed in."}`, rr.Body.String())
}

func TestAuth_DeleteAccount(t *testing.T) {
	s := newTestServer()

	rr := s.do(http.MethodPost, "/auth/signup", identity.SignUpRequest{Username: "bob", Email: "bob@example.com", Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp identity.SessionResponse
	decodeBody(t, rr, &resp)

	rr = s.do(http.MethodDelete, "/auth/account", nil, map[string]string{"X-Session-Token": resp.Session.IDToken})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotContains(t, s.users.accounts, resp.Session.UserID)
}

func TestAuth_DeleteAccount_UserRowFailure(t *testing.T) {
	s := newTestServer()

	rr := s.do(http.MethodPost, "/auth/signup", identity.SignUpRequest{Username: "dave", Email: "dave@example.com", Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp identity.SessionResponse
	decodeBody(t, rr, &resp)

	s.users.deleteErr = errors.New("connection reset")
	rr = s.do(http.MethodDelete, "/auth/account", nil, map[string]string{"X-Session-Token": resp.Session.IDToken})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error": "Account deleted but user data could not be removed"}`, rr.Body.String())
}

func TestRegisterDevice(t *testing.T) {
	s := newTestServer()
	auth := map[string]string{"X-Session-Token": "token-a"}

	rr := s.do(http.MethodPost, "/api/notifications/devices", notification.RegisterDeviceRequest{Token: "fcm", Platform: "ios"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/api/notifications/devices", notification.RegisterDeviceRequest{Token: "fcm", Platform: "ios"}, auth)
	assert.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, s.devices.registered, 1)

	rr = s.do(http.MethodPost, "/api/notifications/devices", notification.RegisterDeviceRequest{Token: "fcm", Platform: "symbian"}, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer()

	rr := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
