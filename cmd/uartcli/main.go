package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Station-Manager/uart"
	"github.com/Station-Manager/uart/internal/logging"
)

type options struct {
	configPath string
	driver     string
	device     string
	baud       int
	timeout    time.Duration
	dataBits   int
	parity     string
	stopBits   string

	list    bool
	details bool
	write   string
	read    int
	hexOut  bool
	lenient bool

	logLevel string
	logFile  string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "JSON config file; flags override its values")
	flag.StringVar(&o.driver, "driver", "", "serial backend ("+strings.Join(uart.DriverNames(), ", ")+")")
	flag.StringVar(&o.device, "device", "", "serial device path, e.g. /dev/ttyUSB0 or COM5")
	flag.IntVar(&o.baud, "baud", 0, "baud rate (default 9600)")
	flag.DurationVar(&o.timeout, "timeout", 0, "read timeout (default 1s)")
	flag.IntVar(&o.dataBits, "databits", 0, "data bits 5-8 (default 8)")
	flag.StringVar(&o.parity, "parity", "", "parity N,O,E,M,S (default N)")
	flag.StringVar(&o.stopBits, "stopbits", "", "stop bits 1, 1.5 or 2 (default 1)")
	flag.BoolVar(&o.list, "list", false, "list available ports and exit")
	flag.BoolVar(&o.details, "details", false, "with -list, include USB identification")
	flag.StringVar(&o.write, "write", "", `bytes to send; Go escapes such as \r\n are honoured`)
	flag.IntVar(&o.read, "read", 0, "number of bytes to read after writing")
	flag.BoolVar(&o.hexOut, "hex", false, "print read bytes as hex")
	flag.BoolVar(&o.lenient, "lenient", false, "log device errors and carry on instead of failing")
	flag.StringVar(&o.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	flag.StringVar(&o.logFile, "log-file", "", "also write JSON logs to this file, rotated by size")
	flag.Parse()

	logger, closer, err := logging.New(logging.Config{Level: o.logLevel, File: o.logFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "uartcli: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()

	if err := run(o, logger, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("uartcli failed")
		closer.Close()
		os.Exit(1)
	}
}

func run(o options, logger zerolog.Logger, out io.Writer) error {
	cfg, err := buildConfig(o)
	if err != nil {
		return err
	}

	a, err := uart.New(cfg, uart.WithLogger(logger))
	if err != nil {
		return err
	}

	if o.list {
		return listPorts(a, o.details, out)
	}

	payload, err := unescape(o.write)
	if err != nil {
		return fmt.Errorf("parsing -write: %w", err)
	}

	if o.lenient {
		return runLenient(uart.NewLenient(a), payload, o, out)
	}

	if _, err := a.Connect(); err != nil {
		return err
	}
	defer func() {
		if e := a.Disconnect(); e != nil {
			logger.Warn().Err(e).Msg("disconnect")
		}
	}()

	if len(payload) > 0 {
		if _, err := a.Write(payload); err != nil {
			return err
		}
	}
	if o.read > 0 {
		data, err := a.Read(o.read)
		if err != nil {
			return err
		}
		printData(out, data, o.hexOut)
	}
	return nil
}

func runLenient(l *uart.Lenient, payload []byte, o options, out io.Writer) error {
	h, err := l.Connect()
	if err != nil {
		return err
	}
	if h == nil {
		return nil
	}
	defer l.Disconnect()

	if len(payload) > 0 {
		l.Write(payload)
	}
	if o.read > 0 {
		if data := l.Read(o.read); data != nil {
			printData(out, data, o.hexOut)
		}
	}
	return nil
}

func buildConfig(o options) (uart.Config, error) {
	var cfg uart.Config
	if o.configPath != "" {
		c, err := uart.LoadConfig(o.configPath)
		if err != nil {
			return uart.Config{}, err
		}
		cfg = c
	}

	if o.driver != "" {
		cfg.Driver = o.driver
	}
	if o.device != "" {
		cfg.PortName = o.device
	}
	if o.baud != 0 {
		cfg.BaudRate = o.baud
	}
	if o.timeout != 0 {
		cfg.Timeout = o.timeout
	}
	if o.dataBits != 0 {
		cfg.DataBits = o.dataBits
	}
	if o.parity != "" {
		cfg.Parity = strings.ToUpper(o.parity)
	}
	if o.stopBits != "" {
		cfg.StopBits = o.stopBits
	}
	return cfg, nil
}

func listPorts(a *uart.Adapter, details bool, out io.Writer) error {
	if !details {
		ports, err := a.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(out, "No serial ports found!")
		}
		for _, p := range ports {
			fmt.Fprintln(out, p)
		}
		return nil
	}

	ports, err := a.ListPortDetails()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found!")
	}
	for _, p := range ports {
		fmt.Fprintf(out, "Port: %s\n", p.Name)
		if p.IsUSB {
			fmt.Fprintf(out, "   USB ID     %s:%s\n", p.VID, p.PID)
			fmt.Fprintf(out, "   USB serial %s\n", p.SerialNumber)
			if p.Product != "" {
				fmt.Fprintf(out, "   Product    %s\n", p.Product)
			}
		}
	}
	return nil
}

func unescape(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	// Quote bare double quotes only; an escaped \" is already valid.
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			b.WriteByte(c)
			i++
			b.WriteByte(s[i])
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	u, err := strconv.Unquote(b.String())
	if err != nil {
		return nil, errors.New("invalid escape sequence")
	}
	return []byte(u), nil
}

func printData(out io.Writer, data []byte, asHex bool) {
	if asHex {
		fmt.Fprintln(out, hex.EncodeToString(data))
		return
	}
	fmt.Fprintf(out, "%q\n", data)
}
