package unified

import (
	"errors"
	"fmt"

	"github.com/yuanying/bookcore/internal/book"
	"github.com/yuanying/bookcore/internal/epub"
	"github.com/yuanying/bookcore/internal/mobi"
)

// ErrorCode classifies parse failures.
type ErrorCode string

const (
	CodeUnsupportedFormat   ErrorCode = "UNSUPPORTED_FORMAT"
	CodeCorruptedFile       ErrorCode = "CORRUPTED_FILE"
	CodeInvalidMetadata     ErrorCode = "INVALID_METADATA"
	CodeMemoryLimitExceeded ErrorCode = "MEMORY_LIMIT_EXCEEDED"
	// CodeTimeout is never produced by Parse; it is reserved for callers
	// that layer their own deadline.
	CodeTimeout ErrorCode = "TIMEOUT"
	CodeUnknown ErrorCode = "UNKNOWN_ERROR"
)

// Error is the failure reported in a ParserResult.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

var (
	corrupted = []error{
		book.ErrInvalidContainer,
		mobi.ErrInvalidHeader,
		mobi.ErrUnsupportedCompression,
	}
	invalidMetadata = []error{
		epub.ErrContainerNotFound,
		epub.ErrOPFPathNotFound,
		epub.ErrPackageNotFound,
		epub.ErrInvalidPackage,
	}
)

// classify maps a format parser error onto the error taxonomy. Anything
// else, including DRM (mobi.ErrDRMProtected, epub.ErrDRMProtected),
// pdf.ErrEncrypted and mobi.ErrHuffCDICNotImplemented, is CodeUnknown with
// the cause attached.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	for _, target := range corrupted {
		if errors.Is(err, target) {
			return newError(CodeCorruptedFile, err.Error(), err)
		}
	}
	for _, target := range invalidMetadata {
		if errors.Is(err, target) {
			return newError(CodeInvalidMetadata, err.Error(), err)
		}
	}
	return newError(CodeUnknown, err.Error(), err)
}
