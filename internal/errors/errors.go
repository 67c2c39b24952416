package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures of the encryption core so callers can branch on
// the kind instead of matching error strings.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindMalformedPlaceholder means a value does not match the ENC(...) grammar.
	KindMalformedPlaceholder
	// KindUnitNotFound means no unit is registered under the requested alias.
	KindUnitNotFound
	// KindSecretUnavailable means the configured secret origin cannot be read.
	KindSecretUnavailable
	// KindOperationFailure means the cipher or digest operation itself failed.
	KindOperationFailure
	// KindWatchEstablishmentFailure means a password file watch could not be set up.
	KindWatchEstablishmentFailure
)

func (k Kind) String() string {
	switch k {
	case KindMalformedPlaceholder:
		return "malformed placeholder"
	case KindUnitNotFound:
		return "unit not found"
	case KindSecretUnavailable:
		return "secret unavailable"
	case KindOperationFailure:
		return "operation failure"
	case KindWatchEstablishmentFailure:
		return "watch establishment failure"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrMalformedPlaceholder      = &Error{Kind: KindMalformedPlaceholder}
	ErrUnitNotFound              = &Error{Kind: KindUnitNotFound}
	ErrSecretUnavailable         = &Error{Kind: KindSecretUnavailable}
	ErrOperationFailure          = &Error{Kind: KindOperationFailure}
	ErrWatchEstablishmentFailure = &Error{Kind: KindWatchEstablishmentFailure}
)

// Error is a classified failure raised by the encryption core.
type Error struct {
	Kind    Kind
	Alias   string // unit alias, if known
	Op      string // operation, e.g. "decrypt"
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.Alias != "" {
		fmt.Fprintf(&b, " (alias '%s')", e.Alias)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so that sentinels match any error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a classified error.
func New(kind Kind, alias, op, message string, err error) *Error {
	return &Error{Kind: kind, Alias: alias, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// SimplifyError turns low level failures into messages with suggestions for the CLI.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	switch KindOf(err) {
	case KindUnitNotFound:
		return UserError{
			Message:    "No unit is registered for the requested alias",
			Suggestion: "Check the alias in the ENC(...) value and the 'encryptors' section of your configuration",
			Err:        err,
		}
	case KindSecretUnavailable:
		return UserError{
			Message:    "The password for the unit could not be obtained",
			Details:    err.Error(),
			Suggestion: "Verify the password file exists and the referenced environment variables or properties are set",
			Err:        err,
		}
	case KindOperationFailure:
		return UserError{
			Message:    "The cryptographic operation failed",
			Details:    err.Error(),
			Suggestion: "Make sure the value was encrypted with the same algorithm, password and output type",
			Err:        err,
		}
	case KindWatchEstablishmentFailure:
		return UserError{
			Message:    "Unable to watch the password file",
			Details:    err.Error(),
			Suggestion: "Make sure the directory of the password file exists or set 'enable_password_file_watcher: false'",
			Err:        err,
		}
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
