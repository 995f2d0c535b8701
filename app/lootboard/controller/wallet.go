package controller

import (
	"net/http"

	"github.com/canopy-network/lootboard/app/lootboard/types"
	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
)

// HandleSwitchAccount replaces the service wallet's signing key. The session
// is notified and rebinds to the new account.
func (c *Controller) HandleSwitchAccount(w http.ResponseWriter, r *http.Request) {
	if c.App.Wallet == nil {
		writeError(w, http.StatusServiceUnavailable, "wallet not configured")
		return
	}
	var in types.SwitchAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	account, err := c.App.Wallet.SwitchAccount(in.PrivateKey)
	if err != nil {
		// the parse error never echoes the key
		c.App.Logger.Warn("switch account rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid private key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": account})
}
