package uart

import (
	tarm "github.com/tarm/serial"
)

var openTarm = func(c *tarm.Config) (Handle, error) { return tarm.OpenPort(c) }

// TarmDriver opens ports with github.com/tarm/serial. That package has no
// enumeration, so listing goes through the go.bug.st enumerator.
//
// A zero ReadTimeout blocks until at least one byte arrives. The timeout is
// fixed once the port is open, so Adapter.Read makes one driver read per call.
type TarmDriver struct{}

func (TarmDriver) Ports() ([]string, error) {
	return getPortsList()
}

func (TarmDriver) PortDetails() ([]PortDetails, error) {
	return detailedPorts()
}

func (TarmDriver) Open(name string, mode Mode) (Handle, error) {
	p, err := openTarm(&tarm.Config{
		Name:        name,
		Baud:        mode.BaudRate,
		ReadTimeout: mode.ReadTimeout,
		Size:        byte(mode.DataBits),
		Parity:      tarm.Parity(mode.Parity.Letter()),
		StopBits:    tarmStopBits(mode.StopBits),
	})
	if err != nil {
		return nil, classifyOpenError(err)
	}
	return p, nil
}

func tarmStopBits(sb StopBits) tarm.StopBits {
	switch sb {
	case StopBits1Half:
		return tarm.Stop1Half
	case StopBits2:
		return tarm.Stop2
	default:
		return tarm.Stop1
	}
}
