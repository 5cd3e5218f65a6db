package certset

import (
	"errors"
	"fmt"
)

// ErrInvalidCertificate is matched by every error reporting a candidate file
// that is not a public certificate.
var ErrInvalidCertificate = errors.New("not a valid public certificate")

// InvalidCertificateError reports a candidate path which cannot be used as an
// additional certificate.
type InvalidCertificateError struct {
	// Path is the offending candidate path, as given by the caller.
	Path string
	// Type is the detected content type. It is Unknown when the file could not be read.
	Type ContentType
	// Reason is a short human readable explanation.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

func (e *InvalidCertificateError) Error() string {
	msg := fmt.Sprintf("specified file %s is not a valid public certificate", e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidCertificate) hold.
func (e *InvalidCertificateError) Is(target error) bool {
	return target == ErrInvalidCertificate
}

func (e *InvalidCertificateError) Unwrap() error {
	return e.Err
}
