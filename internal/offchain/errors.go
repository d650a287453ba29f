package offchain

import "errors"

// Offchain failures. None of them are fatal: the traversal for the current
// height ends and the next height tries again.
var (
	// ErrNetwork indicates a transport failure while fetching.
	ErrNetwork = errors.New("offchain: network error")
	// ErrProtocol indicates an unexpected status code or response shape.
	ErrProtocol = errors.New("offchain: protocol error")
	// ErrParse indicates the numeric part of the response did not parse.
	ErrParse = errors.New("offchain: parse error")
	// ErrNoSignerAvailable indicates no local account may sign submissions.
	ErrNoSignerAvailable = errors.New("offchain: no local signer available")
	// ErrSubmissionFailed indicates accounts exist but none got a
	// transaction into the pool.
	ErrSubmissionFailed = errors.New("offchain: no submission accepted")
)
