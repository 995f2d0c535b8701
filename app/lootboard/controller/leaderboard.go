package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/canopy-network/lootboard/pkg/redis"
	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/canopy-network/lootboard/pkg/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxLeaderboardLimit = 1000

// LeaderboardResponse is returned by GET /leaderboard.
type LeaderboardResponse struct {
	Entries   []rewards.Entry `json:"entries"`
	Accounts  int             `json:"accounts"`
	Skipped   int             `json:"skipped"`
	Status    string          `json:"status"`
	Stale     bool            `json:"stale"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// RankResponse is returned by GET /accounts/{address}/rank.
type RankResponse struct {
	Account   string `json:"account"`
	Rank      int    `json:"rank,omitempty"`
	Placement string `json:"placement"`
	Window    int    `json:"window"`
	Total     string `json:"total"`
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if n < 0 {
		return 0, rewards.ErrNegativeWindow
	}
	return min(n, maxLeaderboardLimit), nil
}

// HandleLeaderboard serves the top N accounts of the last refresh. Before
// the first refresh the Redis cached board is served, marked stale.
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, c.App.Session.Window())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := string(c.App.Session.State().Rewards.Status)

	if l := c.App.Session.Ledger(); l != nil {
		top, err := l.Ranking.TopN(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, LeaderboardResponse{
			Entries:   top,
			Accounts:  l.Ranking.Len(),
			Skipped:   l.Skipped,
			Status:    status,
			Stale:     status != string(store.StatusReady),
			UpdatedAt: l.At,
		})
		return
	}

	cached, err := c.App.CachedLeaderboard(r.Context())
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.App.Logger.Warn("cached leaderboard read failed", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: []rewards.Entry{}, Status: status, Stale: true})
		return
	}
	entries := cached.Entries
	if limit < len(entries) {
		entries = entries[:limit]
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Entries:   entries,
		Accounts:  cached.Accounts,
		Skipped:   cached.Skipped,
		Status:    status,
		Stale:     true,
		UpdatedAt: cached.At,
	})
}

func accountParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return "", false
	}
	return address, true
}

// HandleAccountRank serves an account's rank and placement.
func (c *Controller) HandleAccountRank(w http.ResponseWriter, r *http.Request) {
	address, ok := accountParam(w, r)
	if !ok {
		return
	}
	window, err := parseLimit(r, c.App.Session.Window())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum := c.App.Session.Summary(address)
	placement := sum.Placement
	if l := c.App.Session.Ledger(); l != nil {
		placement = l.Ranking.Placement(address, window)
	}
	writeJSON(w, http.StatusOK, RankResponse{
		Account:   sum.Account,
		Rank:      sum.Rank,
		Placement: placement.String(),
		Window:    window,
		Total:     sum.Total,
	})
}

// HandleAccountTotal serves an account's cumulative reward.
func (c *Controller) HandleAccountTotal(w http.ResponseWriter, r *http.Request) {
	address, ok := accountParam(w, r)
	if !ok {
		return
	}
	sum := c.App.Session.Summary(address)
	writeJSON(w, http.StatusOK, map[string]string{
		"account": sum.Account,
		"total":   sum.Total,
	})
}
