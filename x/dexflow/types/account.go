package types

import (
	"encoding/json"
	"strings"

	errorsmod "cosmossdk.io/errors"
	host "github.com/cosmos/ibc-go/v8/modules/core/24-host"
)

// Connection is the IBC route between the local chain and the remote venue.
type Connection struct {
	// ConnectionID is the local connection the interchain account is opened on.
	ConnectionID string `json:"connection_id"`
	// TransferChannel carries ICS-20 transfers from the local chain to the venue.
	TransferChannel string `json:"transfer_channel"`
	// RemoteTransferChannel carries ICS-20 transfers from the venue back.
	RemoteTransferChannel string `json:"remote_transfer_channel"`
}

// Validate checks that every identifier is well-formed.
func (c Connection) Validate() error {
	if err := host.ConnectionIdentifierValidator(c.ConnectionID); err != nil {
		return errorsmod.Wrapf(ErrInvalidConnection, "connection id: %s", err)
	}
	if err := host.ChannelIdentifierValidator(c.TransferChannel); err != nil {
		return errorsmod.Wrapf(ErrInvalidConnection, "transfer channel: %s", err)
	}
	if err := host.ChannelIdentifierValidator(c.RemoteTransferChannel); err != nil {
		return errorsmod.Wrapf(ErrInvalidConnection, "remote transfer channel: %s", err)
	}
	return nil
}

// RemoteAccount is an interchain account controlled by a workflow.
type RemoteAccount struct {
	Owner      string     `json:"owner"`
	Address    string     `json:"address"`
	Connection Connection `json:"connection"`
}

// NewRemoteAccount builds an account from a successful registration.
func NewRemoteAccount(owner, address string, conn Connection) (RemoteAccount, error) {
	acc := RemoteAccount{Owner: owner, Address: address, Connection: conn}
	if err := acc.Validate(); err != nil {
		return RemoteAccount{}, err
	}
	return acc, nil
}

// IsZero reports whether the account has not been registered yet.
func (a RemoteAccount) IsZero() bool {
	return a.Address == ""
}

// Validate checks the account fields.
func (a RemoteAccount) Validate() error {
	if strings.TrimSpace(a.Owner) == "" {
		return errorsmod.Wrap(ErrRegistrationFailed, "empty owner")
	}
	if strings.TrimSpace(a.Address) == "" {
		return errorsmod.Wrap(ErrRegistrationFailed, "empty remote account identifier")
	}
	return a.Connection.Validate()
}

// RegistrationResponse is the payload delivered when an account channel opens.
type RegistrationResponse struct {
	RemoteAccountID string `json:"remote_account_identifier"`
}

// ParseRegistrationResponse decodes a registration payload.
func ParseRegistrationResponse(bz []byte) (RegistrationResponse, error) {
	var resp RegistrationResponse
	if err := json.Unmarshal(bz, &resp); err != nil {
		return RegistrationResponse{}, errorsmod.Wrapf(ErrMalformedResponse, "registration response: %s", err)
	}
	if strings.TrimSpace(resp.RemoteAccountID) == "" {
		return RegistrationResponse{}, errorsmod.Wrap(ErrMalformedResponse, "registration response without account identifier")
	}
	return resp, nil
}
