package onboarding

import "fmt"

type ErrorReason string

const (
	REASON_INVALID_INPUT                   ErrorReason = "INVALID_INPUT"
	REASON_UNKNOWN_COUNTRY                 ErrorReason = "UNKNOWN_COUNTRY"
	REASON_OUT_OF_ORDER                    ErrorReason = "OUT_OF_ORDER"
	REASON_SESSION_EXPIRED                 ErrorReason = "SESSION_EXPIRED"
	REASON_SELLER_DOES_NOT_EXIST           ErrorReason = "SELLER_DOES_NOT_EXIST"
	REASON_SELLER_ALREADY_EXISTS           ErrorReason = "SELLER_ALREADY_EXISTS"
	REASON_FAILED_TO_FETCH                 ErrorReason = "FAILED_TO_FETCH"
	REASON_FAILED_TO_WRITE                 ErrorReason = "FAILED_TO_WRITE"
	REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL ErrorReason = "FAILED_TO_TRANSLATE_TO_DB_MODEL"
	REASON_TIMEOUT                         ErrorReason = "TIMEOUT"
	REASON_FAILED_TO_NOTIFY                ErrorReason = "FAILED_TO_NOTIFY"
)

type Error struct {
	Reason  ErrorReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the user can repeat the same action and expect it to succeed.
func (e *Error) Retryable() bool {
	switch e.Reason {
	case REASON_FAILED_TO_FETCH, REASON_FAILED_TO_WRITE, REASON_TIMEOUT:
		return true
	}
	return false
}

func newOnboardingError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewInvalidInputError(message string) *Error {
	return newOnboardingError(REASON_INVALID_INPUT, message, nil)
}

func NewUnknownCountryError(value string) *Error {
	return newOnboardingError(REASON_UNKNOWN_COUNTRY, fmt.Sprintf("Country %q is not supported", value), nil)
}

func NewOutOfOrderError(expected Step, actual Step) *Error {
	return newOnboardingError(REASON_OUT_OF_ORDER, fmt.Sprintf("Expected step %s, session is at %s", expected, actual), nil)
}

func NewSessionExpiredError(userID string) *Error {
	return newOnboardingError(REASON_SESSION_EXPIRED, fmt.Sprintf("No registration in progress for user %q", userID), nil)
}

func NewSellerDoesNotExistError(message string, cause error) *Error {
	return newOnboardingError(REASON_SELLER_DOES_NOT_EXIST, message, cause)
}

func NewSellerAlreadyExistsError(message string, cause error) *Error {
	return newOnboardingError(REASON_SELLER_ALREADY_EXISTS, message, cause)
}

func NewFailedToFetchError(message string, cause error) *Error {
	return newOnboardingError(REASON_FAILED_TO_FETCH, message, cause)
}

func NewFailedToWriteError(message string, cause error) *Error {
	return newOnboardingError(REASON_FAILED_TO_WRITE, message, cause)
}

func NewFailedToTranslateToDBModelError(message string, cause error) *Error {
	return newOnboardingError(REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL, message, cause)
}

func NewTimeoutError(message string) *Error {
	return newOnboardingError(REASON_TIMEOUT, message, nil)
}

func NewFailedToNotifyError(message string, cause error) *Error {
	return newOnboardingError(REASON_FAILED_TO_NOTIFY, message, cause)
}
