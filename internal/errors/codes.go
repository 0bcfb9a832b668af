// Package errors provides structured error handling for payment operations.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeInvalidHandle    Code = "INVALID_HANDLE"
	CodeInvalidAmount    Code = "INVALID_AMOUNT"
	CodeInvalidAsset     Code = "INVALID_ASSET"
	CodePastEndTime      Code = "PAST_END_TIME"
	CodePastFirstPayment Code = "PAST_FIRST_PAYMENT"
	CodeInvalidInterval  Code = "INVALID_INTERVAL"
	CodeInvalidFilter    Code = "INVALID_FILTER"

	// Stream errors
	CodeStreamExists    Code = "STREAM_EXISTS"
	CodeStreamNotActive Code = "STREAM_NOT_ACTIVE"
	CodeStreamNotFound  Code = "STREAM_NOT_FOUND"

	// Schedule errors
	CodeScheduleExists    Code = "SCHEDULE_EXISTS"
	CodeScheduleNotActive Code = "SCHEDULE_NOT_ACTIVE"
	CodeScheduleNotFound  Code = "SCHEDULE_NOT_FOUND"
	CodePaymentNotDue     Code = "PAYMENT_NOT_DUE"

	// Authorization errors
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeUnauthorizedMigration Code = "UNAUTHORIZED_MIGRATION"
	CodeNoMigrationNeeded     Code = "NO_MIGRATION_NEEDED"

	// Identity errors
	CodeHandleNotFound Code = "HANDLE_NOT_FOUND"

	// Settlement/treasury errors
	CodeLedgerFailure     Code = "LEDGER_FAILURE"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"

	// Arithmetic errors
	CodeRateOverflow Code = "RATE_OVERFLOW"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeInternal Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidHandle,
		CodeInvalidAmount,
		CodeInvalidAsset,
		CodePastEndTime,
		CodePastFirstPayment,
		CodeInvalidInterval,
		CodeInvalidFilter:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeStreamExists,
		CodeStreamNotActive,
		CodeScheduleExists,
		CodeScheduleNotActive,
		CodePaymentNotDue,
		CodeNoMigrationNeeded,
		CodeInsufficientFunds:
		return codes.FailedPrecondition

	// PermissionDenied - caller is not allowed to act
	case CodeUnauthorized,
		CodeUnauthorizedMigration:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeStreamNotFound,
		CodeScheduleNotFound,
		CodeHandleNotFound,
		CodeNotFound:
		return codes.NotFound

	// OutOfRange - arithmetic width exceeded
	case CodeRateOverflow:
		return codes.OutOfRange

	default:
		return codes.Internal
	}
}
