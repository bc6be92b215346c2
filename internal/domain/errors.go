package domain

import "errors"

var (
	// Event errors
	ErrEventNotFound       = errors.New("event not found")
	ErrEventDead           = errors.New("event is dead-lettered; requires operator requeue")
	ErrEventNotRequeueable = errors.New("event is not in a requeueable state")
	ErrUnknownEventType    = errors.New("unknown event type")
	ErrInvalidPayload      = errors.New("invalid event payload")

	// Document errors
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDocumentNotPosted = errors.New("document is not posted")
	ErrEmptyLines        = errors.New("document has no lines")

	// Posting errors
	ErrPeriodLocked          = errors.New("accounting period is locked")
	ErrMissingAccountMapping = errors.New("missing account mapping for role")
	ErrImbalancedJournal     = errors.New("journal is imbalanced beyond rounding tolerance")
	ErrJournalNotFound       = errors.New("journal not found")
	ErrLockTimeout           = errors.New("timed out waiting for company posting lock")
	ErrPaymentsExceedTotal   = errors.New("payments exceed document total")
	ErrMissingExchangeRate   = errors.New("exchange rate is required")

	// Device errors
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceUnauthorized = errors.New("device credentials rejected")
	ErrCompanyMismatch    = errors.New("company_id does not match device registration")

	// Agent errors
	ErrStoreFull = errors.New("outbox store is full")
)

// Permanent reports whether err is a validation- or policy-class failure
// that must not be retried without an operator or a corrected event.
// Everything else (I/O, lock contention) is treated as transient.
func Permanent(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrUnknownEventType),
		errors.Is(err, ErrEmptyLines),
		errors.Is(err, ErrPeriodLocked),
		errors.Is(err, ErrMissingAccountMapping),
		errors.Is(err, ErrImbalancedJournal),
		errors.Is(err, ErrPaymentsExceedTotal),
		errors.Is(err, ErrMissingExchangeRate):
		return true
	}
	return false
}
