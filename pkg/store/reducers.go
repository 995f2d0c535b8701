package store

import (
	"github.com/canopy-network/lootboard/pkg/rewards"
)

// reducer computes the next state. It must not mutate slices reachable
// from prev.
type reducer func(prev State, a Action) State

var reducers = map[Kind]reducer{
	ConnectRequest:     connectRequest,
	ConnectSuccess:     connectSuccess,
	ConnectFailed:      connectFailed,
	SetContract:        setContract,
	UpdateAccount:      updateAccount,
	CheckDataRequest:   checkDataRequest,
	SetItems:           setItems,
	CheckDataFailed:    checkDataFailed,
	RewardsRequest:     rewardsRequest,
	RewardsLoaded:      rewardsLoaded,
	RewardsUnavailable: rewardsUnavailable,
	SetMessage:         setMessage,
}

// Reduce applies a to prev. Unknown kinds leave the state unchanged.
func Reduce(prev State, a Action) State {
	fn, ok := reducers[a.Kind]
	if !ok {
		return prev
	}
	return fn(prev, a)
}

func connectRequest(prev State, _ Action) State {
	prev.Blockchain = Blockchain{Loading: true}
	return prev
}

func connectSuccess(prev State, a Action) State {
	prev.Blockchain.Loading = false
	prev.Blockchain.Account = a.Account
	prev.Blockchain.NetworkID = a.NetworkID
	prev.Blockchain.ErrorMsg = ""
	return prev
}

func connectFailed(prev State, a Action) State {
	prev.Blockchain = Blockchain{ErrorMsg: a.Message}
	return prev
}

func setContract(prev State, _ Action) State {
	prev.Blockchain.ContractBound = true
	return prev
}

func updateAccount(prev State, a Action) State {
	prev.Blockchain.Account = a.Account
	prev.Data = Data{Items: []string{}}
	prev.Rewards.AccountTotal = ""
	prev.Rewards.AccountRank = 0
	prev.Rewards.Placement = ""
	return prev
}

func checkDataRequest(prev State, _ Action) State {
	prev.Data.Loading = true
	prev.Data.Error = false
	prev.Data.ErrorMsg = ""
	return prev
}

func setItems(prev State, a Action) State {
	items := make([]string, len(a.Items))
	copy(items, a.Items)
	prev.Data = Data{Items: items}
	return prev
}

func checkDataFailed(prev State, a Action) State {
	prev.Data.Loading = false
	prev.Data.Error = true
	prev.Data.ErrorMsg = a.Message
	return prev
}

func rewardsRequest(prev State, _ Action) State {
	prev.Rewards.Status = StatusLoading
	return prev
}

func rewardsLoaded(prev State, a Action) State {
	snap := a.Snapshot
	if snap == nil {
		return prev
	}
	board := make([]rewards.Entry, len(snap.Leaderboard))
	copy(board, snap.Leaderboard)
	prev.Rewards = Rewards{
		Status:       StatusReady,
		AccountTotal: snap.AccountTotal,
		AccountRank:  snap.AccountRank,
		Placement:    snap.Placement,
		Leaderboard:  board,
		Accounts:     snap.Accounts,
		Skipped:      snap.Skipped,
		UpdatedAt:    snap.At,
	}
	return prev
}

// rewardsUnavailable keeps the previous leaderboard for reference but marks
// it as not fresh.
func rewardsUnavailable(prev State, a Action) State {
	prev.Rewards.Status = StatusUnavailable
	prev.Rewards.ErrorMsg = a.Message
	return prev
}

func setMessage(prev State, a Action) State {
	prev.Message = a.Message
	return prev
}
