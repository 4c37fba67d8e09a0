package types

import (
	"cosmossdk.io/errors"
)

// dexflow module sentinel errors
var (
	ErrInvalidTask          = errors.Register(ModuleName, 2, "invalid swap task")
	ErrEmptyCoinSet         = errors.Register(ModuleName, 3, "coin set is empty")
	ErrInvalidConnection    = errors.Register(ModuleName, 4, "invalid connection")
	ErrMalformedResponse    = errors.Register(ModuleName, 5, "malformed remote response")
	ErrRegistrationFailed   = errors.Register(ModuleName, 6, "remote account registration failed")
	ErrUnexpectedEvent      = errors.Register(ModuleName, 7, "event not expected in the current state")
	ErrWorkflowNotFound     = errors.Register(ModuleName, 8, "workflow not found")
	ErrDeliveryFailed       = errors.Register(ModuleName, 9, "notification delivery failed")
	ErrUnknownStateVersion  = errors.Register(ModuleName, 10, "unknown workflow state version")
	ErrUnknownTaskType      = errors.Register(ModuleName, 11, "unknown swap task type")
	ErrUnsupportedMsg       = errors.Register(ModuleName, 12, "unsupported outbound message")
	ErrInvalidParams        = errors.Register(ModuleName, 13, "invalid module parameters")
	ErrInvalidGenesis       = errors.Register(ModuleName, 14, "invalid genesis state")
	ErrNoSwapRoute          = errors.Register(ModuleName, 15, "no swap route between denominations")
	ErrRemoteAccountChanged = errors.Register(ModuleName, 16, "remote account identifier changed")
)
