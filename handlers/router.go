package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coveyTownAPI/middleware"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps is everything NewRouter needs to mount the API.
type RouterDeps struct {
	DB            Pinger
	Friends       *FriendHandler
	Users         *UserHandler
	Towns         *TownHandler
	Auth          *AuthHandler
	Notifications *NotificationHandler
	Verifier      middleware.TokenVerifier
	RateLimiter   *middleware.RateLimiter
	MetricsUser   string
	MetricsPass   string
}

func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()

	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware)
	}
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(deps.MetricsUser, deps.MetricsPass)(promhttp.Handler())).Methods("GET")
	r.HandleFunc("/health", healthHandler(deps.DB)).Methods("GET")

	authRequired := middleware.SessionAuthMiddleware(deps.Verifier)
	authOptional := middleware.OptionalAuthMiddleware(deps.Verifier)

	friends := r.PathPrefix("/api/friends").Subrouter()
	friends.HandleFunc("/requests", deps.Friends.CreateRequest).Methods("POST")
	friends.HandleFunc("/requests", deps.Friends.ResolveRequest).Methods("PATCH")
	friends.HandleFunc("/requests/{userID}", deps.Friends.GetRequests).Methods("GET")
	friends.HandleFunc("/search/{searchTerm}", deps.Friends.SearchUsers).Methods("GET")
	friends.HandleFunc("/{userID}", deps.Friends.GetFriends).Methods("GET")
	friends.Handle("/{userID}/{friendID}", authRequired(http.HandlerFunc(deps.Friends.RemoveFriend))).Methods("DELETE")

	userReads := r.PathPrefix("/users").Subrouter()
	userReads.Use(authOptional)
	userReads.HandleFunc("/exists/{username}", deps.Users.UsernameExists).Methods("GET")
	userReads.HandleFunc("/{userID}/userStats", deps.Users.GetUserStats).Methods("GET")
	userReads.HandleFunc("/{userID}/recentlyVisitedTowns", deps.Users.GetRecentlyVisitedTowns).Methods("GET")

	userWrites := r.PathPrefix("/users/{userID}").Subrouter()
	userWrites.Use(authRequired)
	userWrites.HandleFunc("/visits", deps.Users.RecordVisit).Methods("POST")
	userWrites.HandleFunc("/gameRecords", deps.Users.RecordGame).Methods("POST")
	userWrites.HandleFunc("/sessions", deps.Users.StartSession).Methods("POST")
	userWrites.HandleFunc("/sessions", deps.Users.EndSession).Methods("PATCH")

	towns := r.PathPrefix("/towns").Subrouter()
	towns.HandleFunc("", deps.Towns.ListTowns).Methods("GET")
	towns.HandleFunc("", deps.Towns.CreateTown).Methods("POST")
	towns.HandleFunc("/{townID}", deps.Towns.DeleteTown).Methods("DELETE")

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", deps.Auth.SignUp).Methods("POST")
	auth.HandleFunc("/login", deps.Auth.LogIn).Methods("POST")
	auth.HandleFunc("/provider", deps.Auth.SignInWithProvider).Methods("POST")
	auth.HandleFunc("/logout", deps.Auth.LogOut).Methods("POST")
	auth.HandleFunc("/account", deps.Auth.DeleteAccount).Methods("DELETE")
	auth.HandleFunc("/username", deps.Auth.UpdateUsername).Methods("PATCH")

	notifications := r.PathPrefix("/api/notifications").Subrouter()
	notifications.Use(authRequired)
	notifications.HandleFunc("/devices", deps.Notifications.RegisterDevice).Methods("POST")

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
		}

		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "coveyTown-api",
		})
	}
}
