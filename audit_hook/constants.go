package audithook

// Action constants for audit events.
const (
	// Payment actions
	ActionPaymentObserved = "payment.observed"
	ActionPaymentRejected = "payment.rejected"

	// Lease actions
	ActionLeaseCreated   = "lease.created"
	ActionLeaseActivated = "lease.activated"
	ActionLeaseCompleted = "lease.completed"
	ActionLeaseFailed    = "lease.failed"

	// Usage actions
	ActionUsageDetected = "usage.detected"

	// Reclaim actions
	ActionReclaimed     = "reclaim.completed"
	ActionReclaimRetry  = "reclaim.retry"
	ActionSweepComplete = "sweep.completed"

	// Eligibility actions
	ActionEligibilityChecked = "eligibility.checked"
	ActionEligibilityDenied  = "eligibility.denied"
)

// Resource constants for audit events.
const (
	ResourcePayment = "payment"
	ResourceLease   = "lease"
	ResourceUsage   = "usage"
	ResourceSweep   = "sweep"
	ResourceAddress = "address"
)

// Category constants for audit events.
const (
	CategoryPayment = "payment"
	CategoryLease   = "lease"
	CategoryReclaim = "reclaim"
	CategoryAccess  = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
