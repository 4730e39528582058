package uart

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakeHandle serves queued read chunks; an empty queue behaves like an
// elapsed read timeout (0, nil).
type fakeHandle struct {
	chunks  [][]byte
	readErr error
	// emptyErr is returned instead of (0, nil) once chunks run out.
	emptyErr error
	reads    int

	written  bytes.Buffer
	writes   int
	maxWrite int // accept at most this many bytes per Write when > 0
	writeErr error

	closed   bool
	closeErr error

	timeouts      []time.Duration // every SetReadTimeout call, in order
	setTimeoutErr error
}

func (h *fakeHandle) Read(p []byte) (int, error) {
	h.reads++
	if h.readErr != nil {
		return 0, h.readErr
	}
	if len(h.chunks) == 0 {
		return 0, h.emptyErr
	}
	n := copy(p, h.chunks[0])
	h.chunks[0] = h.chunks[0][n:]
	if len(h.chunks[0]) == 0 {
		h.chunks = h.chunks[1:]
	}
	return n, nil
}

func (h *fakeHandle) Write(p []byte) (int, error) {
	h.writes++
	if h.writeErr != nil {
		return 0, h.writeErr
	}
	if h.maxWrite > 0 && len(p) > h.maxWrite {
		p = p[:h.maxWrite]
	}
	return h.written.Write(p)
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return h.closeErr
}

func (h *fakeHandle) SetReadTimeout(d time.Duration) error {
	h.timeouts = append(h.timeouts, d)
	return h.setTimeoutErr
}

// fakeDriver hands out handles in order, a fresh one when the list runs out.
type fakeDriver struct {
	ports    []string
	details  []PortDetails
	portsErr error

	openErr error
	handles []*fakeHandle
	opened  []string
	modes   []Mode
}

func (d *fakeDriver) Ports() ([]string, error) {
	if d.portsErr != nil {
		return nil, d.portsErr
	}
	return d.ports, nil
}

func (d *fakeDriver) PortDetails() ([]PortDetails, error) {
	if d.portsErr != nil {
		return nil, d.portsErr
	}
	return d.details, nil
}

func (d *fakeDriver) Open(name string, mode Mode) (Handle, error) {
	d.opened = append(d.opened, name)
	d.modes = append(d.modes, mode)
	if d.openErr != nil {
		return nil, d.openErr
	}
	var h *fakeHandle
	if len(d.handles) > 0 {
		h, d.handles = d.handles[0], d.handles[1:]
	} else {
		h = &fakeHandle{}
	}
	return h, nil
}

// stallHandle returns one byte per Read after sleeping, to exercise the overall read deadline.
type stallHandle struct {
	delay time.Duration
	reads int
}

func (h *stallHandle) Read(p []byte) (int, error) {
	h.reads++
	time.Sleep(h.delay)
	p[0] = 'x'
	return 1, nil
}

func (h *stallHandle) Write(p []byte) (int, error)          { return len(p), nil }
func (h *stallHandle) Close() error                         { return nil }
func (h *stallHandle) SetReadTimeout(d time.Duration) error { return nil }

// lateHandle behaves like a driver port with a per-call read timeout: the
// first Read delivers one byte after firstDelay, every later Read finds
// nothing and blocks for the whole current timeout.
type lateHandle struct {
	firstDelay time.Duration
	timeout    time.Duration
	timeouts   []time.Duration
	reads      int
}

func (h *lateHandle) Read(p []byte) (int, error) {
	h.reads++
	if h.reads == 1 {
		time.Sleep(h.firstDelay)
		p[0] = 'x'
		return 1, nil
	}
	time.Sleep(h.timeout)
	return 0, nil
}

func (h *lateHandle) Write(p []byte) (int, error) { return len(p), nil }
func (h *lateHandle) Close() error                { return nil }

func (h *lateHandle) SetReadTimeout(d time.Duration) error {
	h.timeout = d
	h.timeouts = append(h.timeouts, d)
	return nil
}

// fixedTimeoutHandle is lateHandle without SetReadTimeout, like a tarm port.
type fixedTimeoutHandle struct {
	firstDelay time.Duration
	timeout    time.Duration
	reads      int
}

func (h *fixedTimeoutHandle) Read(p []byte) (int, error) {
	h.reads++
	if h.reads == 1 {
		time.Sleep(h.firstDelay)
		p[0] = 'x'
		return 1, nil
	}
	time.Sleep(h.timeout)
	return 0, nil
}

func (h *fixedTimeoutHandle) Write(p []byte) (int, error) { return len(p), nil }
func (h *fixedTimeoutHandle) Close() error                { return nil }

type singleHandleDriver struct {
	h Handle
}

func (d singleHandleDriver) Ports() ([]string, error)            { return nil, nil }
func (d singleHandleDriver) PortDetails() ([]PortDetails, error) { return nil, nil }
func (d singleHandleDriver) Open(string, Mode) (Handle, error)   { return d.h, nil }

var errDevice = errors.New("device reports I/O error")

func newTestAdapter(tb testing.TB, cfg Config, d Driver) *Adapter {
	tb.Helper()
	a, err := New(cfg, WithDriver(d))
	if err != nil {
		tb.Fatalf("New: %v", err)
	}
	return a
}

func mustConnect(tb testing.TB, a *Adapter, port string) {
	tb.Helper()
	if _, err := a.ConnectTo(port); err != nil {
		tb.Fatalf("ConnectTo(%q): %v", port, err)
	}
}
