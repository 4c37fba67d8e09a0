package workflow_test

import (
	"encoding/json"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	icacontrollertypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/controller/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"

	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

const eventTaskFinished = "test_task_finished"

var (
	testNow  = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	testConn = types.Connection{ConnectionID: "connection-0", TransferChannel: "channel-0", RemoteTransferChannel: "channel-9"}
)

type testTask struct {
	workflow.CoinList
	Name    string              `json:"name"`
	Out     string              `json:"out"`
	Acc     types.RemoteAccount `json:"account"`
	Oracles types.OracleRef     `json:"oracle"`
	Alarms  types.TimeAlarmsRef `json:"alarms"`
}

func newTestTask(out string, coins ...sdk.Coin) testTask {
	return testTask{
		CoinList: workflow.NewCoinList(coins...),
		Name:     "test-task",
		Out:      out,
		Oracles:  types.OracleRef{Address: "oracle", BaseDenom: "uusdc"},
		Alarms:   types.TimeAlarmsRef{Address: "alarms"},
	}
}

func (t testTask) Type() string                    { return "test" }
func (t testTask) Label() string                   { return t.Name }
func (t testTask) Account() types.RemoteAccount    { return t.Acc }
func (t testTask) Oracle() types.OracleRef         { return t.Oracles }
func (t testTask) TimeAlarms() types.TimeAlarmsRef { return t.Alarms }
func (t testTask) OutDenom() string                { return t.Out }

func (t testTask) WithAccount(acc types.RemoteAccount) workflow.SwapTask {
	t.Acc = acc
	return t
}

func (t testTask) Finish(_ workflow.Env, amountOut sdk.Coin) (types.Batch, error) {
	return types.Batch{Events: sdk.Events{sdk.NewEvent(eventTaskFinished, sdk.NewAttribute("amount", amountOut.String()))}}, nil
}

// compensatingTask records terminal failures.
type compensatingTask struct {
	testTask
}

func (t compensatingTask) Type() string { return "test-compensating" }

func (t compensatingTask) WithAccount(acc types.RemoteAccount) workflow.SwapTask {
	t.Acc = acc
	return t
}

func (t compensatingTask) OnFailure(_ workflow.Env, stage workflow.Stage, cause error) (types.Batch, error) {
	return types.Batch{Events: sdk.Events{sdk.NewEvent("test_task_failed",
		sdk.NewAttribute("stage", stage.String()),
		sdk.NewAttribute("cause", cause.Error()),
	)}}, nil
}

type fakeHost struct {
	unreachable bool
	failSwap    error
	swaps       [][]types.SwapRequest
}

func (h *fakeHost) TransferOut(acc types.RemoteAccount, coin sdk.Coin) ([]sdk.Msg, error) {
	return []sdk.Msg{&transfertypes.MsgTransfer{
		SourcePort:    "transfer",
		SourceChannel: acc.Connection.TransferChannel,
		Token:         coin,
		Sender:        "local",
		Receiver:      acc.Address,
	}}, nil
}

func (h *fakeHost) TransferIn(acc types.RemoteAccount, coin sdk.Coin) ([]sdk.Msg, error) {
	return []sdk.Msg{&transfertypes.MsgTransfer{
		SourcePort:    "transfer",
		SourceChannel: acc.Connection.RemoteTransferChannel,
		Token:         coin,
		Sender:        acc.Address,
		Receiver:      "local",
	}}, nil
}

func (h *fakeHost) RegisterAccount(owner string, conn types.Connection) (sdk.Msg, error) {
	return &icacontrollertypes.MsgRegisterInterchainAccount{Owner: owner, ConnectionId: conn.ConnectionID}, nil
}

func (h *fakeHost) SubmitSwap(acc types.RemoteAccount, swaps []types.SwapRequest) (sdk.Msg, error) {
	if h.failSwap != nil {
		return nil, h.failSwap
	}
	h.swaps = append(h.swaps, swaps)
	return &icacontrollertypes.MsgSendTx{Owner: acc.Owner, ConnectionId: acc.Connection.ConnectionID}, nil
}

func (h *fakeHost) DecodeSwapResponse(data []byte) ([]sdkmath.Int, error) {
	var amounts []sdkmath.Int
	if err := json.Unmarshal(data, &amounts); err != nil {
		return nil, err
	}
	return amounts, nil
}

func (h *fakeHost) AccountReachable(types.RemoteAccount) bool {
	return !h.unreachable
}

type fakeOracle struct{}

func (fakeOracle) SwapPath(ref types.OracleRef, from, to string) ([]types.SwapHop, error) {
	if from == "unrouted" {
		return nil, errors.New("no price")
	}
	if from == ref.BaseDenom || to == ref.BaseDenom {
		return []types.SwapHop{{PoolID: 1, TokenOut: to}}, nil
	}
	return []types.SwapHop{{PoolID: 1, TokenOut: ref.BaseDenom}, {PoolID: 2, TokenOut: to}}, nil
}

func newEnv(host *fakeHost) workflow.Env {
	return workflow.NewEnv(testNow, host, fakeOracle{}, types.DefaultParams())
}

func registration(id string) []byte {
	bz, _ := json.Marshal(types.RegistrationResponse{RemoteAccountID: id})
	return bz
}

func swapAmounts(amounts ...int64) []byte {
	ints := make([]sdkmath.Int, len(amounts))
	for i, a := range amounts {
		ints[i] = sdkmath.NewInt(a)
	}
	bz, _ := json.Marshal(ints)
	return bz
}

func coin(amount int64, denom string) sdk.Coin {
	return sdk.NewInt64Coin(denom, amount)
}

func transferToken(msg sdk.Msg) sdk.Coin {
	return msg.(*transfertypes.MsgTransfer).Token
}

func finishedCount(events sdk.Events) int {
	n := 0
	for _, e := range events {
		if e.Type == eventTaskFinished {
			n++
		}
	}
	return n
}
