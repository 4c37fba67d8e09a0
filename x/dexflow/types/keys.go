package types

const (
	// ModuleName defines the module name
	ModuleName = "dexflow"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// RouterKey defines the module's message routing key
	RouterKey = ModuleName

	// QuerierRoute defines the module's query routing key
	QuerierRoute = ModuleName
)

const (
	// SwapMsgTypeURL is the type url of the swap instruction executed by the remote venue.
	SwapMsgTypeURL = "/dexflow.venue.v1.MsgSwapExactAmountIn"

	// SwapResponseTypeURL is the type url of the venue's per-swap response.
	SwapResponseTypeURL = "/dexflow.venue.v1.MsgSwapExactAmountInResponse"
)
