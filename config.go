package uart

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// DefaultTimeout is the read timeout used when Config.Timeout is zero and
// Config.NonBlocking is false.
const DefaultTimeout = time.Second

// Config holds the adapter settings. Zero values take the defaults applied by
// ApplyDefaults.
type Config struct {
	// PortName is the device path or COM name, e.g. /dev/ttyUSB0 or COM5.
	// Empty means no port is known yet.
	PortName string `json:"port_name"`

	BaudRate int    `json:"baud_rate" validate:"gt=0"`
	DataBits int    `json:"data_bits" validate:"oneof=5 6 7 8"`
	Parity   string `json:"parity" validate:"oneof=N O E M S n o e m s"`
	StopBits string `json:"stop_bits" validate:"oneof=1 1.5 2"`

	// Timeout bounds how long a read waits for data.
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
	// NonBlocking keeps a zero Timeout instead of defaulting it; reads then
	// return whatever the driver already holds.
	NonBlocking bool `json:"non_blocking"`

	// Driver selects the backend, see DriverByName.
	Driver string `json:"driver" validate:"omitempty,oneof=bugst tarm"`
}

// DefaultConfig returns a Config with every default applied and no port name.
func DefaultConfig() Config {
	return Config{}.ApplyDefaults()
}

// ApplyDefaults fills zero fields: 9600 baud, 8N1 and a one second timeout.
func (c Config) ApplyDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate.Int()
	}
	if c.DataBits == 0 {
		c.DataBits = DataBits8.Int()
	}
	if c.Parity == "" {
		c.Parity = ParityNone.String()
	}
	if c.StopBits == "" {
		c.StopBits = StopBits1.String()
	}
	if c.Timeout == 0 && !c.NonBlocking {
		c.Timeout = DefaultTimeout
	}
	if c.Driver == "" {
		c.Driver = DriverBugst
	}
	return c
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig checks the line settings. The port name is not required here;
// its absence is reported by Connect.
func ValidateConfig(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid serial configuration: %w", err)
	}
	return nil
}

// mode converts a validated Config to driver line settings.
func (c Config) mode() (Mode, error) {
	parity, err := ParseParity(c.Parity)
	if err != nil {
		return Mode{}, err
	}
	stop, err := ParseStopBits(c.StopBits)
	if err != nil {
		return Mode{}, err
	}
	return Mode{
		BaudRate:    c.BaudRate,
		DataBits:    DataBits(c.DataBits),
		Parity:      parity,
		StopBits:    stop,
		ReadTimeout: c.Timeout,
	}, nil
}

// fileConfig is the on-disk form; durations are strings such as "500ms".
type fileConfig struct {
	PortName    string `json:"port_name"`
	BaudRate    int    `json:"baud_rate"`
	DataBits    int    `json:"data_bits"`
	Parity      string `json:"parity"`
	StopBits    string `json:"stop_bits"`
	Timeout     string `json:"timeout"`
	NonBlocking bool   `json:"non_blocking"`
	Driver      string `json:"driver"`
}

// LoadConfig reads a JSON config file, applies defaults and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes JSON config bytes, applies defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg := Config{
		PortName:    fc.PortName,
		BaudRate:    fc.BaudRate,
		DataBits:    fc.DataBits,
		Parity:      fc.Parity,
		StopBits:    fc.StopBits,
		NonBlocking: fc.NonBlocking,
		Driver:      fc.Driver,
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("decoding config: timeout: %w", err)
		}
		cfg.Timeout = d
	}

	cfg = cfg.ApplyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
