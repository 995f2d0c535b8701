package controller

import (
	"net/http"
	"slices"

	"github.com/canopy-network/lootboard/app/lootboard/types"
	"github.com/canopy-network/lootboard/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

type Controller struct {
	App        *types.App
	AdminToken string
	Users      map[string]types.User
	JWTSecret  []byte

	// connected WebSocket clients, by remote address
	clients *xsync.Map[string, struct{}]
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	svc := app.Config.Service

	users := map[string]types.User{}
	phash, err := utils.HashOrRead(svc.AdminPassword)
	if err != nil {
		app.Logger.Error("Unable to hash admin password, login disabled", zap.Error(err))
	} else {
		users[svc.AdminUser] = types.User{Username: svc.AdminUser, Hash: phash, Role: "admin"}
	}

	return &Controller{
		App:        app,
		AdminToken: svc.AdminToken,
		Users:      users,
		JWTSecret:  []byte(svc.JWTSecret),
		clients:    xsync.NewMap[string, struct{}](),
	}
}

// WithCORS adds CORS headers for the allowed origins. An origin list
// containing "*" echoes any origin.
func WithCORS(origins []string, next http.Handler) http.Handler {
	anyOrigin := slices.Contains(origins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (anyOrigin || slices.Contains(origins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// observe records request metrics under the matched route template.
func (c *Controller) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		c.App.Metrics.ObserveHTTP(route, next).ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(c.observe)

	r.HandleFunc("/health", c.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", c.App.Metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", c.HandleLogout).Methods(http.MethodPost)

	// read side
	r.HandleFunc("/config", c.HandleConfig).Methods(http.MethodGet)
	r.HandleFunc("/state", c.HandleState).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", c.HandleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{address}/rank", c.HandleAccountRank).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{address}/total", c.HandleAccountTotal).Methods(http.MethodGet)
	r.HandleFunc("/items", c.HandleItems).Methods(http.MethodGet)
	r.HandleFunc("/outcomes", c.HandleOutcomes).Methods(http.MethodGet)

	// write side
	r.Handle("/connect", c.RequireAuth(http.HandlerFunc(c.HandleConnect))).Methods(http.MethodPost)
	r.Handle("/refresh", c.RequireAuth(http.HandlerFunc(c.HandleRefresh))).Methods(http.MethodPost)
	r.Handle("/items/{id}/open", c.RequireAuth(http.HandlerFunc(c.HandleOpenItem))).Methods(http.MethodPost)
	r.Handle("/items/{id}/poll", c.RequireAuth(http.HandlerFunc(c.HandleCancelPoll))).Methods(http.MethodDelete)
	r.Handle("/wallet/account", c.RequireAuth(http.HandlerFunc(c.HandleSwitchAccount))).Methods(http.MethodPost)

	r.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}
