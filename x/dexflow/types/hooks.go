package types

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// DexflowHooks is notified when a workflow reaches a terminal state.
type DexflowHooks interface {
	AfterWorkflowDone(ctx sdk.Context, workflowID uint64, label string, amountOut sdk.Coin) error
	AfterWorkflowFailed(ctx sdk.Context, workflowID uint64, label string, reason string) error
}

// MultiDexflowHooks combines multiple hooks
type MultiDexflowHooks []DexflowHooks

// NewMultiDexflowHooks creates a new MultiDexflowHooks
func NewMultiDexflowHooks(hooks ...DexflowHooks) MultiDexflowHooks {
	return hooks
}

func (h MultiDexflowHooks) AfterWorkflowDone(ctx sdk.Context, workflowID uint64, label string, amountOut sdk.Coin) error {
	for _, hook := range h {
		if err := hook.AfterWorkflowDone(ctx, workflowID, label, amountOut); err != nil {
			return err
		}
	}
	return nil
}

func (h MultiDexflowHooks) AfterWorkflowFailed(ctx sdk.Context, workflowID uint64, label string, reason string) error {
	for _, hook := range h {
		if err := hook.AfterWorkflowFailed(ctx, workflowID, label, reason); err != nil {
			return err
		}
	}
	return nil
}
