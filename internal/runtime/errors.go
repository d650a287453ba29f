package runtime

import (
	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace for errors raised during dispatch.
const ModuleName = "oracle"

// Dispatch errors. Codes are part of the transaction result and must not be
// renumbered.
var (
	ErrDispatchRejected = errorsmod.Register(ModuleName, 2, "dispatch rejected")
	ErrUnknownCall      = errorsmod.Register(ModuleName, 3, "unknown call")
	ErrMalformedCall    = errorsmod.Register(ModuleName, 4, "malformed call")
)
