package store

import (
	"time"

	"github.com/canopy-network/lootboard/pkg/rewards"
)

// RewardsStatus is the freshness of the leaderboard snapshot.
type RewardsStatus string

const (
	StatusIdle        RewardsStatus = "idle"
	StatusLoading     RewardsStatus = "loading"
	StatusReady       RewardsStatus = "ready"
	StatusUnavailable RewardsStatus = "unavailable"
)

// Blockchain is the connection slice of State.
type Blockchain struct {
	Loading       bool   `json:"loading"`
	Account       string `json:"account,omitempty"`
	NetworkID     uint64 `json:"networkId,omitempty"`
	ContractBound bool   `json:"contractBound"`
	ErrorMsg      string `json:"errorMsg,omitempty"`
}

// Data holds the items owned by the connected account.
type Data struct {
	Items    []string `json:"items"`
	Loading  bool     `json:"loading"`
	Error    bool     `json:"error"`
	ErrorMsg string   `json:"errorMsg,omitempty"`
}

// Rewards is the leaderboard slice of State.
type Rewards struct {
	Status       RewardsStatus   `json:"status"`
	AccountTotal string          `json:"accountTotal,omitempty"`
	AccountRank  int             `json:"accountRank,omitempty"`
	Placement    string          `json:"placement,omitempty"`
	Leaderboard  []rewards.Entry `json:"leaderboard"`
	Accounts     int             `json:"accounts"`
	Skipped      int             `json:"skipped"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	ErrorMsg     string          `json:"errorMsg,omitempty"`
}

// State is the whole session state. Values handed out by the Store are
// never mutated afterwards.
type State struct {
	Blockchain Blockchain `json:"blockchain"`
	Data       Data       `json:"data"`
	Rewards    Rewards    `json:"rewards"`
	Message    string     `json:"message,omitempty"`
	Version    uint64     `json:"version"`
}

// Initial is the state before any action.
func Initial() State {
	return State{
		Data:    Data{Items: []string{}},
		Rewards: Rewards{Status: StatusIdle, Leaderboard: []rewards.Entry{}},
	}
}
