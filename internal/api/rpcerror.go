package api

import (
	"fmt"

	"github.com/rs/zerolog"
)

// InternalErrorCode is the JSON-RPC code for an unexpected server failure.
const InternalErrorCode = -32603

// RPCError is the error body returned to API clients.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e RPCError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data)
}

// Internal converts err into a generic internal error. The debug text of err
// travels in Data; the failure is logged as a warning.
func Internal(logger zerolog.Logger, err error) RPCError {
	logger.Warn().Err(err).Msg("internal api error")
	return RPCError{
		Code:    InternalErrorCode,
		Message: "Unknown error occurred",
		Data:    fmt.Sprintf("%v", err),
	}
}
