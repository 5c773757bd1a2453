package bridge

import (
	"fmt"
	"strings"
	"time"

	serial "github.com/luhtfiimanal/go-serial-bridge"
)

// Defaults fit a CH340 USB-serial Arduino read by Klipper through /dev/shm.
const (
	DefaultDevice      = "/dev/serial/by-id/usb-1a86_USB2.0-Serial-if00-port0"
	DefaultBaudRate    = 9600
	DefaultTimeout     = 3 * time.Second
	DefaultReadTimeout = 200 * time.Millisecond
	DefaultOpenTimeout = 3 * time.Second
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultReadSize    = 64
)

// Config holds the bridge tunables.
type Config struct {
	// Device is the serial device path.
	Device string
	// BaudRate of the serial line.
	BaudRate int
	// Timeout is how long the bridge tolerates no valid record before faulting.
	Timeout time.Duration
	// ReadTimeout bounds a single read so the freshness check runs regularly.
	ReadTimeout time.Duration
	// OpenTimeout is the window for reopening the device before a fault is escalated.
	OpenTimeout time.Duration
	// RetryDelay is the pause between two open attempts.
	RetryDelay time.Duration
	// ReadSize is the maximum number of bytes taken per read.
	ReadSize int
	// MaxRecord caps an unterminated record; 0 uses serial.DefaultMaxRecord.
	MaxRecord int
}

// DefaultConfig returns a Config with the defaults above.
func DefaultConfig() Config {
	return Config{
		Device:      DefaultDevice,
		BaudRate:    DefaultBaudRate,
		Timeout:     DefaultTimeout,
		ReadTimeout: DefaultReadTimeout,
		OpenTimeout: DefaultOpenTimeout,
		RetryDelay:  DefaultRetryDelay,
		ReadSize:    DefaultReadSize,
		MaxRecord:   serial.DefaultMaxRecord,
	}
}

// Validate checks the configuration for values that would break the loop.
func (c Config) Validate() error {
	var errs []string

	if c.Device == "" {
		errs = append(errs, "device is required")
	}
	if c.BaudRate <= 0 {
		errs = append(errs, "baud rate must be positive")
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, "read timeout must be positive")
	} else if c.Timeout > 0 && c.ReadTimeout >= c.Timeout {
		errs = append(errs, "read timeout must be shorter than timeout")
	}
	if c.OpenTimeout <= 0 {
		errs = append(errs, "open timeout must be positive")
	}
	if c.RetryDelay <= 0 {
		errs = append(errs, "retry delay must be positive")
	}
	if c.ReadSize <= 0 {
		errs = append(errs, "read size must be positive")
	}
	if c.MaxRecord < 0 {
		errs = append(errs, "max record must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
