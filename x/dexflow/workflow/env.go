package workflow

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// Host builds the outbound instructions a workflow issues and answers the
// questions it asks about the outside world.
type Host interface {
	// TransferOut moves coin from the local chain to acc.
	TransferOut(acc types.RemoteAccount, coin sdk.Coin) ([]sdk.Msg, error)
	// TransferIn moves coin from acc back to the local chain.
	TransferIn(acc types.RemoteAccount, coin sdk.Coin) ([]sdk.Msg, error)
	// RegisterAccount opens (or reopens) the remote account of owner.
	RegisterAccount(owner string, conn types.Connection) (sdk.Msg, error)
	// SubmitSwap runs every request on acc in a single remote transaction.
	SubmitSwap(acc types.RemoteAccount, swaps []types.SwapRequest) (sdk.Msg, error)
	// DecodeSwapResponse extracts the per-swap output amounts in request order.
	DecodeSwapResponse(data []byte) ([]sdkmath.Int, error)
	// AccountReachable reports whether acc can be sent transactions.
	AccountReachable(acc types.RemoteAccount) bool
}

// Oracle resolves swap routes.
type Oracle interface {
	SwapPath(ref types.OracleRef, from, to string) ([]types.SwapHop, error)
}

// Env is everything a step may read besides its own state.
type Env struct {
	Now           time.Time
	Host          Host
	Oracle        Oracle
	RetryDelay    time.Duration
	DeliveryDelay time.Duration
}

// NewEnv builds an Env with delays taken from params.
func NewEnv(now time.Time, host Host, oracle Oracle, params types.Params) Env {
	return Env{
		Now:           now,
		Host:          host,
		Oracle:        oracle,
		RetryDelay:    params.RetryDelay,
		DeliveryDelay: params.DeliveryDelay,
	}
}
