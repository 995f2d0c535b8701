package rewards

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the token's fixed decimal factor: display units are the
// smallest-unit integer shifted 18 places right.
const Decimals int32 = 18

// EventName is the contract event carrying claimed rewards.
const EventName = "RewardClaimed"

// Event is a single RewardClaimed record as returned by the chain.
// Amount is the smallest-unit integer in base 10. Ordering across a query
// result is not chronological.
type Event struct {
	Account     string `json:"account"`
	Amount      string `json:"amount"`
	BlockNumber uint64 `json:"blockNumber"`
	ItemID      string `json:"itemId,omitempty"`
	TxHash      string `json:"txHash,omitempty"`
}

// NormalizeAccount returns the grouping key for an address. Addresses are
// case-insensitive, so the key is the trimmed lower-case form.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// SameAccount reports whether a and b name the same address.
func SameAccount(a, b string) bool {
	return NormalizeAccount(a) == NormalizeAccount(b)
}

// ParseAmount parses a smallest-unit integer string: decimal digits only.
// Empty, fractional, negative, signed, exponent or non-numeric input is
// rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return decimal.Zero, ErrEmptyAmount
	case strings.HasPrefix(s, "-"):
		return decimal.Zero, &AmountError{Raw: raw, Err: ErrNegativeAmount}
	case strings.Contains(s, "."):
		return decimal.Zero, &AmountError{Raw: raw, Err: ErrFractionalAmount}
	case strings.IndexFunc(s, notDigit) >= 0:
		return decimal.Zero, &AmountError{Raw: raw, Err: ErrNotInteger}
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return decimal.Zero, &AmountError{Raw: raw, Err: ErrNotInteger}
	}
	return decimal.NewFromBigInt(n, 0), nil
}

func notDigit(r rune) bool {
	return r < '0' || r > '9'
}

// ToDisplay converts a smallest-unit amount into display units.
func ToDisplay(smallest decimal.Decimal) decimal.Decimal {
	return smallest.Shift(-Decimals)
}

// ToSmallest converts display units back into the smallest unit.
func ToSmallest(display decimal.Decimal) decimal.Decimal {
	return display.Shift(Decimals)
}

// DisplayAmount parses raw and converts it to display units in one step.
func DisplayAmount(raw string) (decimal.Decimal, error) {
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return ToDisplay(d), nil
}
