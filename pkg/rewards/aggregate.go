package rewards

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Totals maps a normalized account to its cumulative reward in display units.
type Totals map[string]decimal.Decimal

// Sum adds every account total.
func (t Totals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t {
		sum = sum.Add(v)
	}
	return sum
}

// Get returns the total for account, matching case-insensitively.
func (t Totals) Get(account string) (decimal.Decimal, bool) {
	v, ok := t[NormalizeAccount(account)]
	return v, ok
}

// Aggregation is the output of one aggregation pass.
type Aggregation struct {
	Totals  Totals
	Counted int
	Skipped int
}

// Aggregate folds events into per-account totals. Events with a malformed
// amount or an empty account are skipped and logged; they never abort the
// pass. logger may be nil.
func Aggregate(events []Event, logger *zap.Logger) Aggregation {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := Aggregation{Totals: make(Totals, len(events))}
	for _, ev := range events {
		key := NormalizeAccount(ev.Account)
		if key == "" {
			out.Skipped++
			logger.Warn("skipping reward event without account",
				zap.Uint64("block", ev.BlockNumber),
				zap.String("tx", ev.TxHash))
			continue
		}
		amount, err := DisplayAmount(ev.Amount)
		if err != nil {
			out.Skipped++
			logger.Warn("skipping reward event with malformed amount",
				zap.String("account", key),
				zap.Uint64("block", ev.BlockNumber),
				zap.String("tx", ev.TxHash),
				zap.Error(err))
			continue
		}
		out.Totals[key] = out.Totals[key].Add(amount)
		out.Counted++
	}
	return out
}
