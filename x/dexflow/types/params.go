package types

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	ibctransfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
	host "github.com/cosmos/ibc-go/v8/modules/core/24-host"
)

// DefaultFeeDenom is the denom used for relayer tips in the default parameters.
const DefaultFeeDenom = "ufee"

// Params holds the tunables read by every workflow step.
type Params struct {
	// TransferTimeout bounds a single ICS-20 transfer packet.
	TransferTimeout time.Duration `json:"transfer_timeout"`
	// ICATimeout is the relative timeout of interchain account transactions.
	ICATimeout time.Duration `json:"ica_timeout"`
	// RetryDelay is how long a stage waits after a timeout or error before re-issuing.
	RetryDelay time.Duration `json:"retry_delay"`
	// DeliveryDelay is the epsilon used when a notification is parked for re-delivery.
	DeliveryDelay time.Duration `json:"delivery_delay"`
	// AckTip and TimeoutTip are paid to relayers through the fee middleware.
	AckTip     sdk.Coins `json:"ack_tip"`
	TimeoutTip sdk.Coins `json:"timeout_tip"`
	// MaxAlarmsPerBlock caps the alarms fired by a single EndBlock.
	MaxAlarmsPerBlock uint32 `json:"max_alarms_per_block"`
	// TransferPort is the local ICS-20 port.
	TransferPort string `json:"transfer_port"`
}

// DefaultParams returns a default set of parameters
func DefaultParams() Params {
	return Params{
		TransferTimeout:   10 * time.Minute,
		ICATimeout:        10 * time.Minute,
		RetryDelay:        30 * time.Second,
		DeliveryDelay:     time.Nanosecond,
		AckTip:            sdk.NewCoins(sdk.NewCoin(DefaultFeeDenom, sdkmath.NewInt(1000))),
		TimeoutTip:        sdk.NewCoins(sdk.NewCoin(DefaultFeeDenom, sdkmath.NewInt(1000))),
		MaxAlarmsPerBlock: 100,
		TransferPort:      ibctransfertypes.PortID,
	}
}

// Validate validates the set of params
func (p Params) Validate() error {
	if p.TransferTimeout <= 0 {
		return fmt.Errorf("transfer timeout must be positive")
	}
	if p.ICATimeout <= 0 {
		return fmt.Errorf("ica timeout must be positive")
	}
	if p.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	if p.DeliveryDelay <= 0 {
		return fmt.Errorf("delivery delay must be positive")
	}
	if err := p.AckTip.Validate(); err != nil {
		return fmt.Errorf("invalid ack tip: %w", err)
	}
	if err := p.TimeoutTip.Validate(); err != nil {
		return fmt.Errorf("invalid timeout tip: %w", err)
	}
	if p.MaxAlarmsPerBlock == 0 {
		return fmt.Errorf("max alarms per block must be positive")
	}
	if strings.TrimSpace(p.TransferPort) == "" {
		return fmt.Errorf("transfer port cannot be empty")
	}
	if err := host.PortIdentifierValidator(p.TransferPort); err != nil {
		return fmt.Errorf("invalid transfer port: %w", err)
	}
	return nil
}

// PaysRelayerFees reports whether transfers are accompanied by a fee payment.
func (p Params) PaysRelayerFees() bool {
	return !p.AckTip.IsZero() || !p.TimeoutTip.IsZero()
}
