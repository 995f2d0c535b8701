package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/canopy-network/lootboard/pkg/config"
	"github.com/canopy-network/lootboard/pkg/poller"
	"github.com/canopy-network/lootboard/pkg/session"
	"github.com/canopy-network/lootboard/pkg/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PublicConfig is the part of the contract document exposed to clients.
type PublicConfig struct {
	ContractAddress string         `json:"contractAddress"`
	ScanLink        string         `json:"scanLink"`
	Network         config.Network `json:"network"`
	NFTName         string         `json:"nftName"`
	Symbol          string         `json:"symbol"`
	ShowBackground  bool           `json:"showBackground"`
	ActionsEnabled  bool           `json:"actionsEnabled"`
	Message         string         `json:"message,omitempty"`
}

// HandleConfig serves the public contract configuration.
func (c *Controller) HandleConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := c.App.Config
	out := PublicConfig{
		ContractAddress: cfg.ContractAddress,
		ScanLink:        cfg.ScanLink,
		Network:         cfg.Network,
		NFTName:         cfg.NFTName,
		Symbol:          cfg.Symbol,
		ShowBackground:  cfg.ShowBackground,
		ActionsEnabled:  cfg.ActionsEnabled(),
	}
	if !out.ActionsEnabled {
		out.Message = config.MsgMissing
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleState serves the current store state.
func (c *Controller) HandleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.App.Session.State())
}

// HandleItems serves the items owned by the connected account.
func (c *Controller) HandleItems(w http.ResponseWriter, _ *http.Request) {
	st := c.App.Session.State()
	items := st.Data.Items
	if items == nil {
		items = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":  st.Blockchain.Account,
		"items":    items,
		"loading":  st.Data.Loading,
		"error":    st.Data.ErrorMsg,
		"inFlight": c.App.Session.ActivePolls(),
	})
}

// HandleOutcomes serves the most recent poll outcomes, newest first. The
// Redis stream is used when enabled so outcomes survive restarts.
func (c *Controller) HandleOutcomes(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if c.App.RedisClient != nil {
		raw, err := c.App.RedisClient.RecentJSON(r.Context(), c.App.Config.Service.OutcomeStream, int64(limit))
		if err == nil {
			out := make([]poller.Outcome, 0, len(raw))
			for _, m := range raw {
				var o poller.Outcome
				if err := json.Unmarshal(m, &o); err != nil {
					c.App.Logger.Warn("skipping undecodable outcome", zap.Error(err))
					continue
				}
				out = append(out, o)
			}
			writeJSON(w, http.StatusOK, out)
			return
		}
		c.App.Logger.Warn("outcome stream read failed, serving in-memory outcomes", zap.Error(err))
	}

	out := c.App.Session.RecentOutcomes()
	if limit < len(out) {
		out = out[:limit]
	}
	if out == nil {
		out = []poller.Outcome{}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleConnect connects the signing wallet and loads its items.
func (c *Controller) HandleConnect(w http.ResponseWriter, r *http.Request) {
	err := c.App.Session.Connect(r.Context())
	st := c.App.Session.State()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st.Blockchain)
	case errors.Is(err, session.ErrActionsDisabled):
		writeError(w, http.StatusServiceUnavailable, config.MsgMissing)
	default:
		msg := st.Blockchain.ErrorMsg
		if msg == "" {
			msg = session.MsgConnectFailed
		}
		writeError(w, http.StatusBadGateway, msg)
	}
}

// HandleRefresh schedules a debounced leaderboard refresh. With ?now=1 the
// refresh runs before the response and its result is returned.
func (c *Controller) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if now, _ := strconv.ParseBool(r.URL.Query().Get("now")); now {
		pending := c.App.Session.FlushRefresh()
		st := c.App.Session.State()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   st.Rewards.Status,
			"absorbed": pending,
			"message":  st.Rewards.ErrorMsg,
		})
		return
	}
	c.App.Session.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// HandleOpenItem opens an item and starts polling for its reward.
func (c *Controller) HandleOpenItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rcpt, err := c.App.Session.OpenItem(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"item":        id,
			"txHash":      rcpt.TxHash,
			"blockNumber": rcpt.BlockNumber,
		})
	case errors.Is(err, session.ErrActionsDisabled):
		writeError(w, http.StatusServiceUnavailable, config.MsgMissing)
	case errors.Is(err, session.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotConnected):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, session.ErrAlreadyPolling):
		writeError(w, http.StatusConflict, err.Error())
	default:
		c.App.Logger.Warn("open item failed", zap.String("item", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, c.App.Session.State().Message)
	}
}

// HandleCancelPoll stops the reward poll of an item.
func (c *Controller) HandleCancelPoll(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !c.App.Session.CancelPoll(id) {
		writeError(w, http.StatusNotFound, "no active poll for item "+utils.Truncate(id, 80))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
