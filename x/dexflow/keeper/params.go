package keeper

import (
	"context"
	"encoding/json"

	errorsmod "cosmossdk.io/errors"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// GetParams returns the module parameters, or the defaults when unset.
func (k Keeper) GetParams(ctx context.Context) types.Params {
	bz := k.getStore(ctx).Get(ParamsKey)
	if bz == nil {
		return types.DefaultParams()
	}
	var params types.Params
	if err := json.Unmarshal(bz, &params); err != nil {
		panic(errorsmod.Wrap(err, "corrupt dexflow params"))
	}
	return params
}

// SetParams validates and stores the module parameters.
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidParams, err.Error())
	}
	bz, err := json.Marshal(params)
	if err != nil {
		return err
	}
	k.getStore(ctx).Set(ParamsKey, bz)
	return nil
}
