package rewards

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// wei returns n whole tokens in the smallest unit.
func wei(n int64) string {
	return decimal.NewFromInt(n).Shift(Decimals).String()
}

func TestAggregateScenario(t *testing.T) {
	events := []Event{
		{Account: "0xA", Amount: wei(100), BlockNumber: 3},
		{Account: "0xB", Amount: wei(50), BlockNumber: 1},
		{Account: "0xA", Amount: wei(25), BlockNumber: 2},
	}

	agg := Aggregate(events, nil)
	require.Len(t, agg.Totals, 2)
	assert.Equal(t, 3, agg.Counted)
	assert.Equal(t, 0, agg.Skipped)

	a, ok := agg.Totals.Get("0xa")
	require.True(t, ok)
	assert.True(t, a.Equal(decimal.NewFromInt(125)), a.String())
	b, _ := agg.Totals.Get("0xB")
	assert.True(t, b.Equal(decimal.NewFromInt(50)), b.String())
}

func TestAggregateCaseInsensitive(t *testing.T) {
	events := []Event{
		{Account: "0xABCdef0000000000000000000000000000000001", Amount: "1"},
		{Account: "0xabcdef0000000000000000000000000000000001", Amount: "2"},
		{Account: " 0xABCDEF0000000000000000000000000000000001 ", Amount: "3"},
	}
	agg := Aggregate(events, nil)
	require.Len(t, agg.Totals, 1)
	total, ok := agg.Totals.Get("0xAbCdEf0000000000000000000000000000000001")
	require.True(t, ok)
	assert.True(t, ToSmallest(total).Equal(decimal.NewFromInt(6)))
}

func TestAggregateConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	accounts := []string{"0xaa", "0xAA", "0xbb", "0xcc", "0xDd"}

	for round := 0; round < 20; round++ {
		n := rng.Intn(50)
		events := make([]Event, 0, n)
		want := decimal.Zero
		for i := 0; i < n; i++ {
			amount := decimal.NewFromInt(rng.Int63n(1_000_000)).Shift(int32(rng.Intn(20)))
			want = want.Add(amount)
			events = append(events, Event{Account: accounts[rng.Intn(len(accounts))], Amount: amount.String()})
		}

		agg := Aggregate(events, nil)
		assert.LessOrEqual(t, len(agg.Totals), len(events))
		assert.True(t, ToSmallest(agg.Totals.Sum()).Equal(want), "round %d: %s != %s", round, ToSmallest(agg.Totals.Sum()), want)
	}
}

func TestAggregateOrderInvariant(t *testing.T) {
	events := []Event{
		{Account: "0x1", Amount: "123456789012345678901"},
		{Account: "0x2", Amount: "5"},
		{Account: "0x1", Amount: "999999999999999999"},
		{Account: "0x3", Amount: "42"},
		{Account: "0x2", Amount: "17"},
	}
	base := Aggregate(events, nil).Totals

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]Event(nil), events...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Aggregate(shuffled, nil).Totals
		require.Len(t, got, len(base))
		for k, v := range base {
			assert.True(t, got[k].Equal(v), "account %s", k)
		}
	}
}

func TestAggregateSkipsMalformed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	events := []Event{
		{Account: "0xa", Amount: "10"},
		{Account: "0xa", Amount: ""},
		{Account: "0xa", Amount: "12abc"},
		{Account: "0xb", Amount: "-5"},
		{Account: "0xb", Amount: "1.5"},
		{Account: "", Amount: "7"},
		{Account: "0xb", Amount: "3"},
	}

	agg := Aggregate(events, zap.New(core))
	assert.Equal(t, 2, agg.Counted)
	assert.Equal(t, 5, agg.Skipped)
	assert.Equal(t, 5, logs.Len())
	assert.True(t, ToSmallest(agg.Totals["0xa"]).Equal(decimal.NewFromInt(10)))
	assert.True(t, ToSmallest(agg.Totals["0xb"]).Equal(decimal.NewFromInt(3)))
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil, nil)
	assert.Empty(t, agg.Totals)
	assert.True(t, agg.Totals.Sum().IsZero())
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("1000000000000000000")
	require.NoError(t, err)
	assert.True(t, ToDisplay(d).Equal(decimal.NewFromInt(1)))

	_, err = ParseAmount("")
	assert.ErrorIs(t, err, ErrEmptyAmount)
	_, err = ParseAmount("-1")
	assert.ErrorIs(t, err, ErrNegativeAmount)
	_, err = ParseAmount("0.5")
	assert.ErrorIs(t, err, ErrFractionalAmount)

	d, err = ParseAmount(" 42 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(42)))

	for _, raw := range []string{"0x10", "1e3", "1E18", "1e999999999", "1.0", "+5", "1_000", "12abc"} {
		var amountErr *AmountError
		_, err = ParseAmount(raw)
		assert.ErrorAs(t, err, &amountErr, raw)
	}
	_, err = ParseAmount("1e3")
	assert.ErrorIs(t, err, ErrNotInteger)
	_, err = ParseAmount("1.0")
	assert.ErrorIs(t, err, ErrFractionalAmount)
}
