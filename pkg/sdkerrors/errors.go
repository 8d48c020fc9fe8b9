// Package sdkerrors defines the closed set of error kinds returned by the
// HTTPay SDK and the normalizer that maps arbitrary transport errors onto it.
package sdkerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a machine-checkable error category.
type Kind string

const (
	KindUnknown            Kind = "UNKNOWN_ERROR"
	KindConfiguration      Kind = "CONFIGURATION_ERROR"
	KindNetwork            Kind = "NETWORK_ERROR"
	KindContract           Kind = "CONTRACT_ERROR"
	KindEscrowVerification Kind = "ESCROW_VERIFICATION_ERROR"
	KindUsageReporting     Kind = "USAGE_REPORTING_ERROR"
	KindWallet             Kind = "WALLET_ERROR"
	KindNotFound           Kind = "NOT_FOUND_ERROR"
)

// Sentinels for errors.Is. Matching is by kind only, so
// errors.Is(err, ErrContract) holds for any contract error in the chain.
var (
	ErrUnknown            = &Error{Kind: KindUnknown}
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrContract           = &Error{Kind: KindContract}
	ErrEscrowVerification = &Error{Kind: KindEscrowVerification}
	ErrUsageReporting     = &Error{Kind: KindUsageReporting}
	ErrWallet             = &Error{Kind: KindWallet}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// DetailOriginalError is the Details key holding the text of the wrapped cause.
const DetailOriginalError = "originalError"

// Error is the single error type surfaced by SDK entry points.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

// Option mutates an Error at construction time.
type Option func(*Error)

// WithDetail attaches a key/value pair to Details.
func WithDetail(key string, value any) Option {
	return func(e *Error) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	}
}

// New creates an Error of the given kind without a cause.
func New(kind Kind, message string, opts ...Option) *Error {
	e := &Error{Kind: kind, Message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap creates an Error of the given kind around cause. The cause text is
// also recorded under Details["originalError"].
func Wrap(kind Kind, cause error, message string, opts ...Option) *Error {
	e := New(kind, message, opts...)
	if cause != nil {
		e.Err = cause
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		if _, ok := e.Details[DetailOriginalError]; !ok {
			e.Details[DetailOriginalError] = cause.Error()
		}
	}
	return e
}

func Configuration(message string, opts ...Option) *Error {
	return New(KindConfiguration, message, opts...)
}

func Network(cause error, message string, opts ...Option) *Error {
	return Wrap(KindNetwork, cause, message, opts...)
}

func Contract(cause error, message string, opts ...Option) *Error {
	return Wrap(KindContract, cause, message, opts...)
}

func Wallet(cause error, message string, opts ...Option) *Error {
	return Wrap(KindWallet, cause, message, opts...)
}

func NotFound(message string, opts ...Option) *Error {
	return New(KindNotFound, message, opts...)
}

func EscrowVerification(cause error, message string, opts ...Option) *Error {
	return Wrap(KindEscrowVerification, cause, message, opts...)
}

func UsageReporting(cause error, message string, opts ...Option) *Error {
	return Wrap(KindUsageReporting, cause, message, opts...)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	cause := e.Err.Error()
	switch {
	case cause == "":
		return e.Message
	case e.Message == "":
		return cause
	}
	return fmt.Sprintf("%s: %s", e.Message, cause)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Detail returns Details[key].
func (e *Error) Detail(key string) (any, bool) {
	if e == nil || e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// From returns the outermost *Error in err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the outermost *Error in err's chain, KindUnknown
// for untyped errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := From(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the caller may retry the operation unchanged.
// Only transport failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}

var (
	networkHints  = []string{"network", "connection", "timeout", "unavailable", "deadline exceeded"}
	walletHints   = []string{"wallet", "signer", "account"}
	contractHints = []string{"contract", "execute", "query"}
)

// Normalize funnels any error into the SDK taxonomy. Errors that already carry
// an *Error are returned unchanged. Others are classified by message:
// network hints first, then wallet, then contract; anything else becomes
// KindUnknown. fallback is used as the message when err has none.
func Normalize(err error, fallback string) error {
	if err == nil {
		return nil
	}
	if _, ok := From(err); ok {
		return err
	}

	message := err.Error()
	if message == "" {
		message = fallback
	}
	lower := strings.ToLower(message)

	kind := KindUnknown
	switch {
	case containsAny(lower, networkHints):
		kind = KindNetwork
	case containsAny(lower, walletHints):
		kind = KindWallet
	case containsAny(lower, contractHints):
		kind = KindContract
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Details: map[string]any{DetailOriginalError: err.Error()},
		Err:     unwrapped{err},
	}
}

// unwrapped keeps the cause reachable through errors.Is/As while preventing
// Error() from printing the message twice.
type unwrapped struct{ err error }

func (u unwrapped) Error() string { return "" }
func (u unwrapped) Unwrap() error { return u.err }

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}
