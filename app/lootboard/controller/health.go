package controller

import (
	"context"
	"net/http"
	"time"
)

// HandleHealth reports process health and, when enabled, Redis reachability.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]string{"status": "ok"}
	status := http.StatusOK

	if c.App.RedisClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.App.RedisClient.Health(ctx); err != nil {
			out["status"] = "degraded"
			out["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			out["redis"] = "ok"
		}
	}

	writeJSON(w, status, out)
}
