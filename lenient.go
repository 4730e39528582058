package uart

import (
	"errors"

	"github.com/rs/zerolog"
)

// Lenient wraps an Adapter with a log-and-continue policy: device failures
// are written to the adapter's logger and turned into empty results. Only
// ErrNoPort reaches the caller. Callers cannot tell "no data" from "device
// gone" through this type; use the Adapter directly when that matters.
type Lenient struct {
	a   *Adapter
	log zerolog.Logger
}

// NewLenient wraps a. Diagnostics go to a's logger.
func NewLenient(a *Adapter) *Lenient {
	return &Lenient{a: a, log: a.Logger()}
}

// Adapter returns the wrapped adapter.
func (l *Lenient) Adapter() *Adapter {
	return l.a
}

// ListPorts returns the visible ports, or an empty slice if enumeration fails.
func (l *Lenient) ListPorts() []string {
	ports, err := l.a.ListPorts()
	if err != nil {
		l.log.Error().Err(err).Msg("error listing ports")
		return []string{}
	}
	if ports == nil {
		return []string{}
	}
	return ports
}

// Connect opens the stored port. A nil handle with a nil error means the
// device could not be opened; the reason was logged.
func (l *Lenient) Connect() (Handle, error) {
	return l.connect(l.a.Connect())
}

// ConnectTo is Connect after storing port as the port name.
func (l *Lenient) ConnectTo(port string) (Handle, error) {
	return l.connect(l.a.ConnectTo(port))
}

func (l *Lenient) connect(h Handle, err error) (Handle, error) {
	name, _ := l.a.PortName()
	if errors.Is(err, ErrNoPort) {
		return nil, err
	}
	if err != nil {
		l.log.Error().Err(err).Str("port", name).Msg("error connecting to port")
		return nil, nil
	}
	l.log.Info().Str("port", name).Msg("connected")
	return h, nil
}

// Disconnect closes the connection if one is open. It never fails.
func (l *Lenient) Disconnect() {
	if !l.a.IsOpen() {
		return
	}
	if err := l.a.Disconnect(); err != nil {
		l.log.Warn().Err(err).Msg("error closing port")
		return
	}
	l.log.Info().Msg("disconnected from port")
}

// Read returns up to size bytes, or nil when the port is closed or the read
// failed. A short or empty result means the timeout elapsed. Read(0) on an
// open port returns an empty slice.
func (l *Lenient) Read(size int) []byte {
	if size == 0 && l.a.IsOpen() {
		return []byte{}
	}
	data, err := l.a.Read(size)
	switch {
	case errors.Is(err, ErrPortNotOpen):
		l.log.Error().Msg("connection not open; cannot read")
		return nil
	case errors.Is(err, ErrInvalidBuffer), errors.Is(err, ErrBufferTooLarge):
		l.log.Error().Err(err).Int("size", size).Msg("invalid read size")
		return nil
	case err != nil:
		l.log.Error().Err(err).Msg("error reading from port")
		return nil
	}
	return data
}

// Write sends data, logging instead of returning any failure.
func (l *Lenient) Write(data []byte) {
	_, err := l.a.Write(data)
	switch {
	case errors.Is(err, ErrPortNotOpen):
		l.log.Error().Msg("connection not open; cannot write")
	case err != nil:
		l.log.Error().Err(err).Msg("error writing to port")
	}
}
