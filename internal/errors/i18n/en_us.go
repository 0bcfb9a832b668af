package i18n

func init() {
	Register(NewCatalog(BaseLocale, map[string]string{
		"UNKNOWN": "An unexpected error occurred.",

		"INVALID_HANDLE":     "Handle {{.handle}} is not a valid payee handle.",
		"INVALID_AMOUNT":     "Payment amount must be greater than zero.",
		"INVALID_ASSET":      "A settlement asset is required.",
		"PAST_END_TIME":      "Stream end time must be in the future.",
		"PAST_FIRST_PAYMENT": "First payment time must be in the future.",
		"INVALID_INTERVAL":   "A recurring schedule needs a valid interval.",
		"INVALID_FILTER":     "The event filter expression is invalid.",

		"STREAM_EXISTS":     "Handle {{.handle}} already has an active stream.",
		"STREAM_NOT_ACTIVE": "Handle {{.handle}} has no active stream.",
		"STREAM_NOT_FOUND":  "No stream exists for handle {{.handle}}.",

		"SCHEDULE_EXISTS":     "Handle {{.handle}} already has an active schedule.",
		"SCHEDULE_NOT_ACTIVE": "Handle {{.handle}} has no active schedule.",
		"SCHEDULE_NOT_FOUND":  "No schedule exists for handle {{.handle}}.",
		"PAYMENT_NOT_DUE":     "The next payment is not due yet.",

		"UNAUTHORIZED":           "Only the treasury manager may perform this operation.",
		"UNAUTHORIZED_MIGRATION": "Only the current controlling address may migrate this stream.",
		"NO_MIGRATION_NEEDED":    "The stream is already bound to the current address.",

		"HANDLE_NOT_FOUND": "Handle {{.handle}} is not claimed.",

		"LEDGER_FAILURE":     "The settlement ledger rejected the operation.",
		"INSUFFICIENT_FUNDS": "The treasury does not hold enough funds for this payment.",

		"RATE_OVERFLOW": "The payment rate exceeds the ledger's representable range.",

		"NOT_FOUND": "The requested record was not found.",
		"INTERNAL":  "An internal error occurred.",
	}))
}
