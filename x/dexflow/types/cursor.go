package types

import "fmt"

// CoinCursor walks a non-empty coin set. Current never exceeds Last.
type CoinCursor struct {
	Current uint32 `json:"current"`
	Last    uint32 `json:"last"`
}

// NewCoinCursor points at the first of count coins.
func NewCoinCursor(count int) (CoinCursor, error) {
	if count <= 0 {
		return CoinCursor{}, ErrEmptyCoinSet
	}
	return CoinCursor{Current: 0, Last: uint32(count - 1)}, nil
}

// IsLast reports whether the cursor points at the final coin.
func (c CoinCursor) IsLast() bool {
	return c.Current == c.Last
}

// Next advances the cursor. Advancing past the last coin is a programming error.
func (c CoinCursor) Next() CoinCursor {
	if c.IsLast() {
		panic(fmt.Sprintf("coin cursor advanced past last coin %d", c.Last))
	}
	return CoinCursor{Current: c.Current + 1, Last: c.Last}
}

// Validate checks the cursor against the size of the coin set it walks.
func (c CoinCursor) Validate(count int) error {
	if count <= 0 {
		return ErrEmptyCoinSet
	}
	if int(c.Last) != count-1 || c.Current > c.Last {
		return fmt.Errorf("cursor %d/%d does not fit %d coins", c.Current, c.Last, count)
	}
	return nil
}
