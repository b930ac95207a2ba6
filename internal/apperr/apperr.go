package apperr

import (
	"net/http"
)

// Kind classifies a failure so the terminal error stage can pick the HTTP
// status without inspecting error strings.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicateEmail
	KindInvalidCredentials
	KindMissingToken
	KindInvalidToken
	KindTokenExpired
	KindUserNotFound
	KindRateLimited
	KindStoreUnavailable
	KindUpstreamTimeout
	KindUpstreamUnavailable
	KindCorruptCredential
)

func (k Kind) Status() int {
	switch k {
	case KindValidation, KindDuplicateEmail:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindMissingToken:
		return http.StatusUnauthorized
	case KindInvalidToken, KindTokenExpired:
		return http.StatusForbidden
	case KindUserNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindStoreUnavailable, KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicateEmail:
		return "duplicate_email"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindMissingToken:
		return "missing_token"
	case KindInvalidToken:
		return "invalid_token"
	case KindTokenExpired:
		return "token_expired"
	case KindUserNotFound:
		return "user_not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindCorruptCredential:
		return "corrupt_credential"
	default:
		return "internal"
	}
}

// FieldViolation is one failed constraint on one input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldViolation
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a 400 error carrying per-field violations in the order
// they were detected.
func Validation(fields []FieldViolation) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "Validation failed",
		Fields:  fields,
	}
}
