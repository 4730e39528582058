package uart

import (
	"errors"
	"strings"
)

var (
	// ErrNoPort is returned by Connect when neither a stored nor a supplied port name exists.
	ErrNoPort = errors.New("uart: no port specified for connection")

	ErrPortNotOpen    = errors.New("uart: port not open")
	ErrPortOpen       = errors.New("uart: setting cannot change while port is open")
	ErrInvalidBuffer  = errors.New("uart: invalid buffer size")
	ErrBufferTooLarge = errors.New("uart: buffer exceeds maximum size")
	ErrShortWrite     = errors.New("uart: partial write, driver accepted zero bytes")
	ErrUnknownDriver  = errors.New("uart: unknown driver")

	// Failure kinds carried by OpError.
	ErrEnumerate = errors.New("uart: port enumeration failed")
	ErrConnect   = errors.New("uart: connect failed")
	ErrRead      = errors.New("uart: read failed")
	ErrWrite     = errors.New("uart: write failed")
	ErrClose     = errors.New("uart: close failed")

	// Connect failure details, attached when the driver reports them.
	ErrPortNotFound     = errors.New("uart: port not found")
	ErrPortBusy         = errors.New("uart: port busy")
	ErrPermissionDenied = errors.New("uart: permission denied")
)

// OpError records a failed driver operation. errors.Is matches both Kind
// and the underlying driver error.
type OpError struct {
	Op   string // list, open, read, write, close
	Port string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString("uart: ")
	b.WriteString(e.Op)
	if e.Port != "" {
		b.WriteString(" ")
		b.WriteString(e.Port)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newOpError(op, port string, kind, err error) *OpError {
	return &OpError{Op: op, Port: port, Kind: kind, Err: err}
}
