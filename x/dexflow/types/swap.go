package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// SwapHop is one pool traversal of a route.
type SwapHop struct {
	PoolID   uint64 `json:"pool_id"`
	TokenOut string `json:"token_out"`
}

// SwapRequest swaps an exact input along a route. It is the JSON body of a
// SwapMsgTypeURL message executed by the remote account.
type SwapRequest struct {
	Sender       string      `json:"sender"`
	TokenIn      sdk.Coin    `json:"token_in"`
	Routes       []SwapHop   `json:"routes"`
	MinAmountOut sdkmath.Int `json:"token_out_min_amount"`
}

// OutDenom is the denom the route ends in.
func (r SwapRequest) OutDenom() string {
	if len(r.Routes) == 0 {
		return ""
	}
	return r.Routes[len(r.Routes)-1].TokenOut
}

// Validate checks the request.
func (r SwapRequest) Validate() error {
	if !r.TokenIn.IsValid() || r.TokenIn.IsZero() {
		return fmt.Errorf("invalid swap input %s", r.TokenIn)
	}
	if len(r.Routes) == 0 {
		return ErrNoSwapRoute
	}
	if r.MinAmountOut.IsNil() || r.MinAmountOut.IsNegative() {
		return fmt.Errorf("min amount out must be non-negative")
	}
	return nil
}

// SwapResponse is the venue's reply to one SwapRequest.
type SwapResponse struct {
	TokenOutAmount sdkmath.Int `json:"token_out_amount"`
}

// IterNext tells a coin walk whether to keep going.
type IterNext int

const (
	IterContinue IterNext = iota
	IterStop
)

// IterState reports whether a coin walk reached the end of the set.
type IterState int

const (
	IterComplete IterState = iota
	IterIncomplete
)

func (s IterState) String() string {
	switch s {
	case IterComplete:
		return "complete"
	case IterIncomplete:
		return "incomplete"
	default:
		return fmt.Sprintf("IterState(%d)", int(s))
	}
}
