package lootboard

import (
	"net/http"
	"time"

	"github.com/canopy-network/lootboard/app/lootboard/controller"
	"github.com/canopy-network/lootboard/app/lootboard/types"
	"go.uber.org/zap"
)

// NewServer builds the HTTP server for app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := app.Config.Service.HTTPAddr

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(app.Config.Service.CORSOrigins, router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
