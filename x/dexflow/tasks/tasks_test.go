package tasks_test

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/dexflow/x/dexflow/tasks"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

var (
	custody  = sdk.AccAddress([]byte("custody_____________"))
	lender   = sdk.AccAddress([]byte("lender______________"))
	treasury = sdk.AccAddress([]byte("treasury____________"))
)

func testBase() tasks.Base {
	return tasks.NewBase(
		types.OracleRef{Address: "oracle", BaseDenom: "uusdc"},
		types.TimeAlarmsRef{Address: "alarms"},
	)
}

func TestNewOpenPosition(t *testing.T) {
	t.Run("distinct denoms keep order", func(t *testing.T) {
		task, err := tasks.NewOpenPosition(testBase(), "lease-1", custody, sdk.NewInt64Coin("uusdc", 100), sdk.NewInt64Coin("uatom", 40), "uosmo")
		require.NoError(t, err)
		require.Equal(t, []sdk.Coin{sdk.NewInt64Coin("uusdc", 100), sdk.NewInt64Coin("uatom", 40)}, task.Coins())
		require.Equal(t, "open/lease-1", task.Label())
		require.Equal(t, "uosmo", task.OutDenom())
	})

	t.Run("same denom merged", func(t *testing.T) {
		task, err := tasks.NewOpenPosition(testBase(), "lease-1", custody, sdk.NewInt64Coin("uusdc", 100), sdk.NewInt64Coin("uusdc", 300), "uosmo")
		require.NoError(t, err)
		require.Equal(t, []sdk.Coin{sdk.NewInt64Coin("uusdc", 400)}, task.Coins())
	})

	t.Run("empty position", func(t *testing.T) {
		_, err := tasks.NewOpenPosition(testBase(), "", custody, sdk.NewInt64Coin("uusdc", 1), sdk.NewInt64Coin("uatom", 1), "uosmo")
		require.ErrorIs(t, err, types.ErrInvalidTask)
	})

	t.Run("zero loan", func(t *testing.T) {
		_, err := tasks.NewOpenPosition(testBase(), "lease-1", custody, sdk.NewInt64Coin("uusdc", 1), sdk.NewInt64Coin("uatom", 0), "uosmo")
		require.ErrorIs(t, err, types.ErrInvalidTask)
	})
}

func TestOpenPositionFinishPaysCustody(t *testing.T) {
	task, err := tasks.NewOpenPosition(testBase(), "lease-1", custody, sdk.NewInt64Coin("uusdc", 100), sdk.NewInt64Coin("uatom", 40), "uosmo")
	require.NoError(t, err)

	batch, err := task.Finish(workflow.Env{Now: time.Now()}, sdk.NewInt64Coin("uosmo", 250))
	require.NoError(t, err)
	require.Len(t, batch.Msgs, 1)

	send, ok := batch.Msgs[0].(*banktypes.MsgSend)
	require.True(t, ok)
	require.Equal(t, authtypes.NewModuleAddress(types.ModuleName).String(), send.FromAddress)
	require.Equal(t, custody.String(), send.ToAddress)
	require.Equal(t, sdk.NewCoins(sdk.NewInt64Coin("uosmo", 250)), send.Amount)

	require.Len(t, batch.Events, 1)
	require.Equal(t, tasks.EventTypePositionOpened, batch.Events[0].Type)
}

func TestFinishWithZeroProceedsSendsNothing(t *testing.T) {
	task, err := tasks.NewBuyBack(testBase(), treasury, sdk.NewCoins(sdk.NewInt64Coin("uatom", 5)), "upaw")
	require.NoError(t, err)

	batch, err := task.Finish(workflow.Env{}, sdk.NewCoin("upaw", sdkmath.ZeroInt()))
	require.NoError(t, err)
	require.Empty(t, batch.Msgs)
	require.Len(t, batch.Events, 1)
	require.Equal(t, tasks.EventTypeProfitBoughtBack, batch.Events[0].Type)
}

func TestClosePosition(t *testing.T) {
	testCases := []struct {
		name    string
		kind    tasks.CloseKind
		wantErr bool
	}{
		{name: "repay", kind: tasks.CloseRepay},
		{name: "liquidation", kind: tasks.CloseLiquidation},
		{name: "unknown kind", kind: "margin-call", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			task, err := tasks.NewClosePosition(testBase(), "lease-7", tc.kind, lender, sdk.NewInt64Coin("uosmo", 900), "uusdc")
			if tc.wantErr {
				require.ErrorIs(t, err, types.ErrInvalidTask)
				return
			}
			require.NoError(t, err)
			require.Equal(t, string(tc.kind)+"/lease-7", task.Label())

			batch, err := task.Finish(workflow.Env{}, sdk.NewInt64Coin("uusdc", 870))
			require.NoError(t, err)
			require.Len(t, batch.Msgs, 1)
			require.Equal(t, lender.String(), batch.Msgs[0].(*banktypes.MsgSend).ToAddress)
			require.Equal(t, tasks.EventTypePositionClosed, batch.Events[0].Type)
		})
	}
}

func TestClosePositionOnFailure(t *testing.T) {
	task, err := tasks.NewClosePosition(testBase(), "lease-7", tasks.CloseLiquidation, lender, sdk.NewInt64Coin("uosmo", 900), "uusdc")
	require.NoError(t, err)

	batch, err := task.OnFailure(workflow.Env{}, workflow.StageSwapping, errors.New("pool drained"))
	require.NoError(t, err)
	require.Empty(t, batch.Msgs)
	require.Len(t, batch.Events, 1)

	ev := batch.Events[0]
	require.Equal(t, tasks.EventTypePositionCloseFailed, ev.Type)
	attrs := map[string]string{}
	for _, a := range ev.Attributes {
		attrs[a.Key] = a.Value
	}
	require.Equal(t, "swapping", attrs[tasks.AttributeKeyStage])
	require.Equal(t, "pool drained", attrs[tasks.AttributeKeyReason])
	require.Equal(t, "liquidation", attrs[tasks.AttributeKeyCloseKind])
}

func TestNewBuyBackRejectsEmptyProfit(t *testing.T) {
	_, err := tasks.NewBuyBack(testBase(), treasury, sdk.NewCoins(), "upaw")
	require.ErrorIs(t, err, types.ErrEmptyCoinSet)
}

func TestRegistryRoundTrip(t *testing.T) {
	registry := tasks.NewRegistry()
	require.Equal(t, []string{tasks.TypeBuyBack, tasks.TypeClosePosition, tasks.TypeOpenPosition}, registry.Types())

	acc, err := types.NewRemoteAccount("dexflow-3", "remote1xyz", types.Connection{
		ConnectionID:          "connection-0",
		TransferChannel:       "channel-0",
		RemoteTransferChannel: "channel-1",
	})
	require.NoError(t, err)

	open, err := tasks.NewOpenPosition(testBase(), "lease-1", custody, sdk.NewInt64Coin("uusdc", 100), sdk.NewInt64Coin("uatom", 40), "uosmo")
	require.NoError(t, err)
	closing, err := tasks.NewClosePosition(testBase(), "lease-2", tasks.CloseRepay, lender, sdk.NewInt64Coin("uosmo", 10), "uusdc")
	require.NoError(t, err)
	buyBack, err := tasks.NewBuyBack(testBase(), treasury, sdk.NewCoins(sdk.NewInt64Coin("uatom", 3), sdk.NewInt64Coin("uosmo", 4)), "upaw")
	require.NoError(t, err)

	for _, task := range []workflow.SwapTask{open, closing, buyBack} {
		t.Run(task.Type(), func(t *testing.T) {
			cursor, err := types.NewCoinCursor(len(task.Coins()))
			require.NoError(t, err)
			state := workflow.TransferOut{Task: task.WithAccount(acc), Cursor: cursor, AwaitingRetry: true}

			bz, err := workflow.MarshalState(state)
			require.NoError(t, err)
			decoded, err := registry.UnmarshalState(bz)
			require.NoError(t, err)
			require.Equal(t, state, decoded)
		})
	}
}
