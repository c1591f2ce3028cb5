// errors.go - Classified failures returned by the transport client
package transport

import "fmt"

// Op names a transport operation.
type Op string

const (
	OpFetchLatest  Op = "fetch-latest"
	OpUpload       Op = "upload"
	OpFetchHistory Op = "fetch-history"
	OpFetchReport  Op = "fetch-report"
)

// Kind classifies a failure.
type Kind string

const (
	// KindValidation is a client-side rejection; no request was sent.
	KindValidation Kind = "validation"
	// KindServer is a non-2xx response.
	KindServer Kind = "server"
	// KindNetwork is a failure to reach the backend or read its response.
	KindNetwork Kind = "network"
	// KindDecode is a 2xx response whose body could not be decoded.
	KindDecode Kind = "decode"
)

// Generic user-facing messages used when the backend does not supply one.
const (
	MsgFetchFailed    = "Failed to fetch data"
	MsgUploadFailed   = "Failed to upload file"
	MsgDownloadFailed = "Failed to download PDF"
	MsgNotCSV         = "Please upload a CSV file"
)

// Error is the uniform failure shape of every transport operation.
// Error() returns the message meant for the user.
type Error struct {
	Op      Op
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Detail describes the failure for logs.
func (e *Error) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s (status %d): %s: %v", e.Op, e.Kind, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
}

// NewValidationError creates a client-side rejection for op.
func NewValidationError(op Op, message string) *Error {
	return &Error{Op: op, Kind: KindValidation, Message: message}
}

func genericMessage(op Op) string {
	switch op {
	case OpUpload:
		return MsgUploadFailed
	case OpFetchReport:
		return MsgDownloadFailed
	default:
		return MsgFetchFailed
	}
}
