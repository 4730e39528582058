package uart

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Adapter owns at most one open connection to a serial device and delegates
// every operation to a Driver. Calls are synchronous; an Adapter expects one
// logical owner issuing them in sequence.
type Adapter struct {
	driver Driver
	log    zerolog.Logger

	cfg  Config
	mode Mode

	// mu guards cfg.PortName, mode and handle. A blocked Read holds it for up
	// to the read timeout.
	mu     sync.Mutex
	handle Handle
	isOpen atomic.Bool

	metrics *Metrics
	buffers *readBuffers
}

// Option configures an Adapter at construction.
type Option func(*Adapter)

// WithDriver replaces the driver selected by Config.Driver.
func WithDriver(d Driver) Option {
	return func(a *Adapter) {
		a.driver = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) {
		a.log = l
	}
}

// New builds an Adapter from cfg. Zero fields take their defaults; a missing
// PortName is allowed and reported later by Connect.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg = cfg.ApplyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	mode, err := cfg.mode()
	if err != nil {
		return nil, fmt.Errorf("invalid serial configuration: %w", err)
	}

	a := &Adapter{
		cfg:     cfg,
		mode:    mode,
		log:     zerolog.Nop(),
		metrics: &Metrics{},
	}
	a.buffers = newReadBuffers(a.metrics)

	for _, opt := range opts {
		opt(a)
	}
	if a.driver == nil {
		if a.driver, err = DriverByName(cfg.Driver); err != nil {
			return nil, err
		}
	}
	a.log = a.log.With().Str("component", "uart").Logger()

	return a, nil
}

// ListPorts returns the device names the driver currently reports, in driver order.
func (a *Adapter) ListPorts() ([]string, error) {
	ports, err := a.driver.Ports()
	if err != nil {
		err = newOpError("list", "", ErrEnumerate, err)
		a.metrics.recordError(err)
		return nil, err
	}
	return ports, nil
}

// ListPortDetails is ListPorts with USB identification where available.
func (a *Adapter) ListPortDetails() ([]PortDetails, error) {
	ports, err := a.driver.PortDetails()
	if err != nil {
		err = newOpError("list", "", ErrEnumerate, err)
		a.metrics.recordError(err)
		return nil, err
	}
	return ports, nil
}

// Connect opens the stored port. See ConnectTo.
func (a *Adapter) Connect() (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.connectLocked()
}

// ConnectTo stores port as the port name and opens it. Any handle already
// open is closed first. An empty port keeps the stored name; with no stored
// name either, ConnectTo returns ErrNoPort and leaves the adapter closed.
//
// On a driver failure the adapter is left closed and the returned *OpError
// matches ErrConnect.
func (a *Adapter) ConnectTo(port string) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if port != "" {
		a.cfg.PortName = port
	}
	return a.connectLocked()
}

func (a *Adapter) connectLocked() (Handle, error) {
	name := a.cfg.PortName
	if name == "" {
		a.metrics.recordConnect(ErrNoPort)
		return nil, ErrNoPort
	}

	if a.handle != nil {
		if err := a.closeLocked(); err != nil {
			a.log.Debug().Err(err).Msg("closing superseded handle")
		}
	}

	h, err := a.driver.Open(name, a.mode)
	if err != nil {
		err = newOpError("open", name, ErrConnect, err)
		a.metrics.recordConnect(err)
		a.log.Debug().Err(err).Str("port", name).Msg("open failed")
		return nil, err
	}

	a.handle = h
	a.isOpen.Store(true)
	a.metrics.recordConnect(nil)
	a.log.Debug().
		Str("port", name).
		Int("baud", a.mode.BaudRate).
		Dur("timeout", a.mode.ReadTimeout).
		Msg("port opened")

	return h, nil
}

// Disconnect closes the open handle. It is a no-op when nothing is open and
// safe to call repeatedly. The handle is released even when closing fails.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle == nil {
		return nil
	}
	return a.closeLocked()
}

// closeLocked releases the handle. The caller holds mu and has checked handle != nil.
func (a *Adapter) closeLocked() error {
	h := a.handle
	a.handle = nil
	a.isOpen.Store(false)
	a.metrics.recordDisconnect()

	if err := h.Close(); err != nil {
		return newOpError("close", a.cfg.PortName, ErrClose, err)
	}
	a.log.Debug().Str("port", a.cfg.PortName).Msg("port closed")
	return nil
}

// Read reads up to size bytes, blocking at most about the read timeout in
// total. It stops early when a driver read comes back empty or the timeout
// has elapsed, so the result may be shorter than size, including empty. It
// is never padded.
//
// On a driver failure Read returns the bytes collected so far and an
// *OpError matching ErrRead.
func (a *Adapter) Read(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle == nil {
		return nil, ErrPortNotOpen
	}
	if size < 1 {
		a.metrics.recordError(ErrInvalidBuffer)
		return nil, ErrInvalidBuffer
	}
	if size > MaxBufferSize {
		a.metrics.recordError(ErrBufferTooLarge)
		return nil, ErrBufferTooLarge
	}

	buf, release := a.buffers.get(size)
	defer release()

	start := time.Now()
	n, err := a.readLocked(buf)
	if err != nil {
		err = newOpError("read", a.cfg.PortName, ErrRead, err)
	}
	a.metrics.recordRead(size, n, err, time.Since(start))

	out := make([]byte, n)
	copy(out, buf[:n])
	return out, err
}

// readTimeoutSetter is implemented by handles whose per-call read timeout
// can change while open (go.bug.st ports do).
type readTimeoutSetter interface {
	SetReadTimeout(d time.Duration) error
}

// readLocked fills buf until it is full, a driver read comes back empty, or
// the read timeout has elapsed overall. Follow-up driver reads wait only for
// the time remaining; a handle that cannot narrow its timeout gets a single
// driver read.
func (a *Adapter) readLocked(buf []byte) (_ int, err error) {
	timeout := a.mode.ReadTimeout
	deadline := time.Now().Add(timeout)
	setter, canNarrow := a.handle.(readTimeoutSetter)

	narrowed := false
	defer func() {
		if !narrowed {
			return
		}
		if e := setter.SetReadTimeout(timeout); e != nil && err == nil {
			err = fmt.Errorf("restoring read timeout: %w", e)
		}
	}()

	total := 0
	for total < len(buf) {
		if total > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 || !canNarrow {
				break
			}
			if err := setter.SetReadTimeout(remaining); err != nil {
				return total, fmt.Errorf("narrowing read timeout: %w", err)
			}
			narrowed = true
		}

		n, err := a.handle.Read(buf[total:])
		total += n
		if errors.Is(err, io.EOF) {
			// some drivers report an elapsed timeout as EOF
			break
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// Write writes all of data. A driver that accepts zero bytes without an
// error fails the write with ErrShortWrite. The returned count is what the
// driver accepted before any failure.
func (a *Adapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle == nil {
		return 0, ErrPortNotOpen
	}
	if len(data) == 0 {
		return 0, nil
	}

	start := time.Now()
	var err error
	written := 0
	for written < len(data) {
		var n int
		n, err = a.handle.Write(data[written:])
		written += n
		if err != nil {
			err = newOpError("write", a.cfg.PortName, ErrWrite, err)
			break
		}
		if n == 0 {
			err = newOpError("write", a.cfg.PortName, ErrWrite, ErrShortWrite)
			break
		}
	}
	a.metrics.recordWrite(written, err, time.Since(start))
	return written, err
}

// SetBaudRate changes the baud rate used by the next Connect.
func (a *Adapter) SetBaudRate(baud int) error {
	if baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", baud)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle != nil {
		return ErrPortOpen
	}
	a.cfg.BaudRate = baud
	a.mode.BaudRate = baud
	return nil
}

// SetTimeout changes the read timeout used by the next Connect.
func (a *Adapter) SetTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("read timeout cannot be negative: %v", d)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle != nil {
		return ErrPortOpen
	}
	a.cfg.Timeout = d
	a.mode.ReadTimeout = d
	return nil
}

// PortName returns the stored port name and whether one is set.
func (a *Adapter) PortName() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.PortName, a.cfg.PortName != ""
}

// Config returns a copy of the current settings.
func (a *Adapter) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Connection returns the open handle, or nil.
func (a *Adapter) Connection() Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle
}

// IsOpen reports whether a handle is open. It does not wait for an in-flight Read.
func (a *Adapter) IsOpen() bool {
	return a.isOpen.Load()
}

// Logger returns the adapter's logger, tagged with component=uart.
func (a *Adapter) Logger() zerolog.Logger {
	return a.log
}

// Metrics returns the live counters. They keep accumulating across connections.
func (a *Adapter) Metrics() *Metrics {
	return a.metrics
}

// MetricsSnapshot computes rates and health for the current connection state.
func (a *Adapter) MetricsSnapshot() MetricsSnapshot {
	return a.metrics.Snapshot(a.isOpen.Load())
}

// BufferPoolStats returns usage of the small, medium and large read pools.
func (a *Adapter) BufferPoolStats() []PoolStats {
	return a.buffers.stats()
}

// AvailablePorts lists ports through the default driver without an Adapter.
func AvailablePorts() ([]string, error) {
	return BugstDriver{}.Ports()
}
