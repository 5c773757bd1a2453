package bridge

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	serial "github.com/luhtfiimanal/go-serial-bridge"
)

// Conn is a byte stream from the device. Read must return within a bounded
// time, with 0, nil meaning nothing arrived.
type Conn interface {
	io.Reader
	io.Closer
}

// OpenFunc opens a new connection to the device.
type OpenFunc func(ctx context.Context) (Conn, error)

// SerialOpener opens cfg.Device as a raw serial port.
func SerialOpener(cfg Config) OpenFunc {
	return func(context.Context) (Conn, error) {
		port, err := serial.Open(serial.Config{
			Device:      cfg.Device,
			BaudRate:    cfg.BaudRate,
			ReadTimeout: cfg.ReadTimeout,
		})
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}

// Manager owns the device connection.
//
// Open retries for at most OpenTimeout, waiting RetryDelay between attempts,
// and then reports a KindConnect error. The caller escalates the fault and
// calls Open again, so retries never stop while the process runs.
type Manager struct {
	open        OpenFunc
	clock       clock.Clock
	device      string
	retryDelay  time.Duration
	openTimeout time.Duration
	metrics     *Metrics
	logger      *zap.SugaredLogger

	conn Conn
}

// NewManager returns a Manager with no open connection.
func NewManager(open OpenFunc, cfg Config, clk clock.Clock, metrics *Metrics, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		open:        open,
		clock:       clk,
		device:      cfg.Device,
		retryDelay:  cfg.RetryDelay,
		openTimeout: cfg.OpenTimeout,
		metrics:     metrics,
		logger:      logger,
	}
}

// Conn returns the open connection, or nil when closed.
func (m *Manager) Conn() Conn {
	return m.conn
}

// Open returns the current connection or opens a new one.
// Missing devices, permission errors and I/O errors are all retried.
func (m *Manager) Open(ctx context.Context) (Conn, error) {
	if m.conn != nil {
		return m.conn, nil
	}

	start := m.clock.Now()
	for attempt := 1; ; attempt++ {
		m.metrics.ConnectAttempts.Inc()
		m.logger.Debugw("opening device", "device", m.device, "attempt", attempt)

		conn, err := m.open(ctx)
		if err == nil {
			m.conn = conn
			m.logger.Infow("connected", "device", m.device, "attempt", attempt)
			return conn, nil
		}

		m.metrics.ConnectFailures.Inc()
		m.logger.Warnw("device open failed, retrying", "device", m.device, "attempt", attempt, "error", err)

		if elapsed := m.clock.Since(start); elapsed >= m.openTimeout {
			return nil, &Error{
				Kind: KindConnect,
				Op:   "open " + m.device,
				Err:  fmt.Errorf("%w after %v: %w", ErrNoConnection, m.openTimeout, err),
			}
		}

		if err := m.wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (m *Manager) wait(ctx context.Context) error {
	timer := m.clock.Timer(m.retryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close closes the current connection, if any. reason is logged.
func (m *Manager) Close(reason string) {
	if m.conn == nil {
		return
	}
	err := m.conn.Close()
	m.conn = nil
	m.metrics.Disconnects.Inc()

	if err != nil {
		m.logger.Warnw("disconnected", "device", m.device, "reason", reason, "error", err)
		return
	}
	m.logger.Infow("disconnected", "device", m.device, "reason", reason)
}
