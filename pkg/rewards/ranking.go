package rewards

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultWindow is the size of the published leaderboard.
const DefaultWindow = 100

// Entry is one leaderboard row. Rank is 1 + the entry's position.
type Entry struct {
	Rank    int             `json:"rank"`
	Account string          `json:"account"`
	Total   decimal.Decimal `json:"total"`
}

// Placement classifies an account relative to a leaderboard window.
type Placement int

const (
	// NotRanked means the account has no recorded rewards.
	NotRanked Placement = iota
	// InWindow means the account's rank is within the requested window.
	InWindow
	// OutsideWindow means the account is ranked but below the window.
	OutsideWindow
)

func (p Placement) String() string {
	switch p {
	case InWindow:
		return "in_window"
	case OutsideWindow:
		return "outside_window"
	default:
		return "not_ranked"
	}
}

// Ranking is an immutable, totally ordered leaderboard.
type Ranking struct {
	entries []Entry
	index   map[string]int
}

// Rank orders totals by total descending. Equal totals are ordered by account
// ascending so identical input always yields the same ranking.
func Rank(totals Totals) *Ranking {
	entries := make([]Entry, 0, len(totals))
	for account, total := range totals {
		entries = append(entries, Entry{Account: account, Total: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Total.Cmp(entries[j].Total); c != 0 {
			return c > 0
		}
		return entries[i].Account < entries[j].Account
	})

	index := make(map[string]int, len(entries))
	for i := range entries {
		entries[i].Rank = i + 1
		index[entries[i].Account] = i
	}
	return &Ranking{entries: entries, index: index}
}

// Len returns the number of ranked accounts.
func (r *Ranking) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns a copy of the full ordered sequence.
func (r *Ranking) Entries() []Entry {
	if r == nil {
		return []Entry{}
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// TopN returns the first min(n, Len) entries. n == 0 yields an empty slice;
// a negative n yields an empty slice and ErrNegativeWindow.
func (r *Ranking) TopN(n int) ([]Entry, error) {
	if n < 0 {
		return []Entry{}, ErrNegativeWindow
	}
	if r == nil || n == 0 {
		return []Entry{}, nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]Entry, n)
	copy(out, r.entries[:n])
	return out, nil
}

// RankOf returns the 1-based rank of account, matched case-insensitively.
// ok is false when the account has no recorded rewards.
func (r *Ranking) RankOf(account string) (rank int, ok bool) {
	if r == nil {
		return 0, false
	}
	i, found := r.index[NormalizeAccount(account)]
	if !found {
		return 0, false
	}
	return i + 1, true
}

// Placement tells whether account is in the top window, ranked below it, or
// absent from the ledger.
func (r *Ranking) Placement(account string, window int) Placement {
	rank, ok := r.RankOf(account)
	if !ok {
		return NotRanked
	}
	if window > 0 && rank <= window {
		return InWindow
	}
	return OutsideWindow
}
