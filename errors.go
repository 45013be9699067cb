package leasing

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("leasing: not found")
	ErrInvalidInput = errors.New("leasing: invalid input")

	// Lease errors
	ErrLeaseNotFound  = errors.New("leasing: lease not found")
	ErrLeaseConflict  = errors.New("leasing: address already has a pending or active lease")
	ErrPaymentSeen    = errors.New("leasing: payment reference already recorded")
	ErrStatusConflict = errors.New("leasing: lease status changed concurrently")
	ErrNotActive      = errors.New("leasing: lease is not active")

	// Eligibility errors
	ErrNotEligible = errors.New("leasing: address holds enough native capacity")

	// Gateway errors
	ErrGrantRejected  = errors.New("leasing: capacity grant rejected by ledger")
	ErrRevokeRejected = errors.New("leasing: capacity revocation rejected by ledger")
	ErrGatewayTimeout = errors.New("leasing: ledger gateway timed out")

	// Engine errors
	ErrWatchAddressMissing = errors.New("leasing: watch address not configured")
	ErrInvalidRate         = errors.New("leasing: rate configuration invalid")
	ErrEngineStopped       = errors.New("leasing: engine is stopped")
	ErrPaymentBufferFull   = errors.New("leasing: payment buffer full")

	// Store errors
	ErrStoreNotReady     = errors.New("leasing: store not ready")
	ErrStoreClosed       = errors.New("leasing: store is closed")
	ErrTransactionFailed = errors.New("leasing: transaction failed")
	ErrMigrationFailed   = errors.New("leasing: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("leasing: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLeaseNotFound)
}

// IsConflict returns true if the error is a uniqueness or status conflict.
// Conflicts mean another actor won a race; callers treat them as benign.
func IsConflict(err error) bool {
	return errors.Is(err, ErrLeaseConflict) ||
		errors.Is(err, ErrPaymentSeen) ||
		errors.Is(err, ErrStatusConflict) ||
		errors.Is(err, ErrNotActive)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrGatewayTimeout) ||
		errors.Is(err, ErrPaymentBufferFull)
}
