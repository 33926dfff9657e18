// Package core implements the transaction state machines for the three
// transaction kinds (declare, deploy-account, invoke) and the fee flow that
// follows their concurrent stage.
package core

import "errors"

// Transaction errors.
var (
	ErrInvokeFunctionZeroHasNonce        = errors.New("invoke v0 must not carry a nonce")
	ErrInvokeFunctionNonZeroMissingNonce = errors.New("invoke v1+ requires a nonce")
	ErrMissingNonce                      = errors.New("missing nonce")
	ErrInvalidTransactionNonce           = errors.New("invalid transaction nonce")
	ErrEmptyConstructorCalldata          = errors.New("calldata given to a class without constructor")
	ErrInvalidContractCall               = errors.New("invalid contract call")
	ErrResourcesCalculation              = errors.New("resources calculation failed")

	// Fee errors.
	ErrActualFeeExceededMaxFee = errors.New("actual fee exceeded max fee")
	ErrFeeTransferFailure      = errors.New("fee transfer failure")
)
