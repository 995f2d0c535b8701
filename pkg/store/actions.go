package store

import (
	"time"

	"github.com/canopy-network/lootboard/pkg/rewards"
)

// Kind names an action.
type Kind string

const (
	ConnectRequest     Kind = "CONNECT_REQUEST"
	ConnectSuccess     Kind = "CONNECT_SUCCESS"
	ConnectFailed      Kind = "CONNECT_FAILED"
	SetContract        Kind = "SET_CONTRACT"
	UpdateAccount      Kind = "UPDATE_ACCOUNT"
	CheckDataRequest   Kind = "CHECK_DATA_REQUEST"
	SetItems           Kind = "SET_ITEMS"
	CheckDataFailed    Kind = "CHECK_DATA_FAILED"
	RewardsRequest     Kind = "REWARDS_REQUEST"
	RewardsLoaded      Kind = "REWARDS_LOADED"
	RewardsUnavailable Kind = "REWARDS_UNAVAILABLE"
	SetMessage         Kind = "SET_MESSAGE"
)

// Action is a state transition request. Only the payload fields relevant to
// Kind are read.
type Action struct {
	Kind      Kind
	Account   string
	NetworkID uint64
	Items     []string
	Message   string
	Snapshot  *RewardsSnapshot
}

// RewardsSnapshot is the payload of RewardsLoaded.
type RewardsSnapshot struct {
	Leaderboard  []rewards.Entry
	Accounts     int
	Skipped      int
	AccountTotal string
	AccountRank  int
	Placement    string
	At           time.Time
}
