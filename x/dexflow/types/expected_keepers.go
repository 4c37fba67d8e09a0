package types

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	icacontrollertypes "github.com/cosmos/ibc-go/v8/modules/apps/27-interchain-accounts/controller/types"
	feetypes "github.com/cosmos/ibc-go/v8/modules/apps/29-fee/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
)

// BankKeeper defines the expected bank keeper
type BankKeeper interface {
	SendCoins(ctx context.Context, fromAddr, toAddr sdk.AccAddress, amt sdk.Coins) error
	SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error
	SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error
	GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin
}

// TransferKeeper defines the expected ICS-20 transfer msg server
type TransferKeeper interface {
	Transfer(ctx context.Context, msg *transfertypes.MsgTransfer) (*transfertypes.MsgTransferResponse, error)
}

// ICAControllerKeeper defines the expected interchain accounts controller
type ICAControllerKeeper interface {
	RegisterInterchainAccount(ctx context.Context, msg *icacontrollertypes.MsgRegisterInterchainAccount) (*icacontrollertypes.MsgRegisterInterchainAccountResponse, error)
	SendTx(ctx context.Context, msg *icacontrollertypes.MsgSendTx) (*icacontrollertypes.MsgSendTxResponse, error)
	GetActiveChannelID(ctx sdk.Context, connectionID, portID string) (string, bool)
	GetInterchainAccountAddress(ctx sdk.Context, connectionID, portID string) (string, bool)
}

// FeeKeeper defines the expected ICS-29 fee msg server
type FeeKeeper interface {
	PayPacketFee(ctx context.Context, msg *feetypes.MsgPayPacketFee) (*feetypes.MsgPayPacketFeeResponse, error)
}

// OracleKeeper defines the expected price oracle used for swap routing
type OracleKeeper interface {
	GetPrice(ctx context.Context, denom string) (sdkmath.LegacyDec, bool)
	SwapPath(ctx context.Context, baseDenom, from, to string) ([]SwapHop, error)
}
