package rewards

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyAmount      = errors.New("empty amount")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrFractionalAmount = errors.New("fractional amount")
	ErrNotInteger       = errors.New("not a decimal integer")
	ErrNegativeWindow   = errors.New("negative leaderboard window")
)

// AmountError reports an event amount that could not be parsed.
type AmountError struct {
	Raw string
	Err error
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("malformed amount %q: %v", e.Raw, e.Err)
}

func (e *AmountError) Unwrap() error { return e.Err }
