package uart

import (
	"errors"
	"fmt"
	"time"

	gobug "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// allow tests to override external dependencies
var (
	openPort        = func(name string, mode *gobug.Mode) (bugstHandle, error) { return gobug.Open(name, mode) }
	getPortsList    = gobug.GetPortsList
	getDetailedList = enumerator.GetDetailedPortsList
)

// bugstHandle is the subset of gobug.Port the driver uses.
type bugstHandle interface {
	Handle
	SetReadTimeout(timeout time.Duration) error
}

// BugstDriver opens ports with go.bug.st/serial.
type BugstDriver struct{}

func (BugstDriver) Ports() ([]string, error) {
	return getPortsList()
}

func (BugstDriver) PortDetails() ([]PortDetails, error) {
	return detailedPorts()
}

func (BugstDriver) Open(name string, mode Mode) (Handle, error) {
	p, err := openPort(name, &gobug.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits.Int(),
		Parity:   mode.Parity.Get(),
		StopBits: mode.StopBits.Get(),
	})
	if err != nil {
		return nil, classifyBugstError(err)
	}

	if err = p.SetReadTimeout(mode.ReadTimeout); err != nil {
		if e := p.Close(); e != nil {
			err = errors.Join(err, e)
		}
		return nil, fmt.Errorf("setting read timeout: %w", err)
	}
	return p, nil
}

func detailedPorts() ([]PortDetails, error) {
	ports, err := getDetailedList()
	if err != nil {
		return nil, err
	}
	out := make([]PortDetails, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortDetails{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}

func classifyBugstError(err error) error {
	var pe *gobug.PortError
	if !errors.As(err, &pe) {
		return classifyOpenError(err)
	}
	switch pe.Code() {
	case gobug.PortNotFound:
		return fmt.Errorf("%w: %w", ErrPortNotFound, err)
	case gobug.PortBusy:
		return fmt.Errorf("%w: %w", ErrPortBusy, err)
	case gobug.PermissionDenied:
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}
