package errno

import (
	"errors"
)

// Errno is one kind of failure the wallet reports to its caller
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Error pairs a kind with the diagnostic that caused it. It matches both
// the kind and the cause under errors.Is.
type Error struct {
	Kind  Errno
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.Message
	}
	return e.Kind.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Wrap attaches cause to kind
func Wrap(kind Errno, cause error) error {
	return &Error{Kind: kind, Cause: cause}
}

// Decode tries to convert an error to a code and a user-facing message
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var wrapped *Error
	if errors.As(err, &wrapped) {
		return wrapped.Kind.Code, wrapped.Error()
	}

	var kind Errno
	if errors.As(err, &kind) {
		return kind.Code, kind.Message
	}

	return Internal.Code, err.Error()
}

var (
	OK       = Errno{Code: 0, Message: "Success"}
	Internal = Errno{Code: 10001, Message: "Internal error"}
)

// Provider errors (20000+)
var (
	ProviderUnavailable = Errno{Code: 20101, Message: "No wallet provider found, install or configure a wallet provider"}
	UserRejected        = Errno{Code: 20102, Message: "Request was rejected in the wallet provider, approve it to continue"}
	SubmissionFailed    = Errno{Code: 20103, Message: "Transaction failed"}
)

// Session and input errors (30000+)
var (
	NotConnected   = Errno{Code: 30101, Message: "Please connect your wallet first"}
	MissingField   = Errno{Code: 30102, Message: "Please enter both recipient address and amount"}
	InvalidAmount  = Errno{Code: 30103, Message: "Amount must be a non-negative decimal number"}
	InvalidAddress = Errno{Code: 30104, Message: "Recipient is not a valid address"}
	InvalidGas     = Errno{Code: 30105, Message: "Gas limit must be a positive integer and gas price a non-negative integer"}
)

// Ledger errors (40000+)
var (
	HistoryFetchFailed = Errno{Code: 40101, Message: "Could not fetch transaction history"}
)
