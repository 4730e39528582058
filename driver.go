package uart

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Handle is an open connection to a serial device, owned by one Adapter.
type Handle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Mode carries the line settings a Driver opens a port with.
type Mode struct {
	BaudRate    int
	DataBits    DataBits
	Parity      Parity
	StopBits    StopBits
	ReadTimeout time.Duration
}

// PortDetails describes an enumerated port. USB fields are empty for non-USB devices.
type PortDetails struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Driver is the host serial interface the adapter delegates to.
type Driver interface {
	Ports() ([]string, error)
	PortDetails() ([]PortDetails, error)
	Open(name string, mode Mode) (Handle, error)
}

const (
	DriverBugst = "bugst"
	DriverTarm  = "tarm"
)

var drivers = map[string]func() Driver{
	DriverBugst: func() Driver { return BugstDriver{} },
	DriverTarm:  func() Driver { return TarmDriver{} },
}

// DriverByName returns the driver registered under name. The empty name selects bugst.
func DriverByName(name string) (Driver, error) {
	if name == "" {
		name = DriverBugst
	}
	mk, ok := drivers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownDriver, name, strings.Join(DriverNames(), ", "))
	}
	return mk(), nil
}

// DriverNames lists the registered driver names in sorted order.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// classifyOpenError attaches ErrPortNotFound, ErrPortBusy or ErrPermissionDenied
// to OS-level open errors.
func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrPortNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}
