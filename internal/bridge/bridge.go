package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	serial "github.com/luhtfiimanal/go-serial-bridge"
	"github.com/luhtfiimanal/go-serial-bridge/internal/sink"
)

// Bridge reads records from the device and publishes the latest reading, or
// the fault sentinel when readings stop.
//
// All state is owned by the goroutine calling Run; Bridge is not safe for
// concurrent use.
type Bridge struct {
	cfg       Config
	clock     clock.Clock
	logger    *zap.SugaredLogger
	metrics   *Metrics
	manager   *Manager
	framer    *serial.Framer
	monitor   *Monitor
	publisher sink.Publisher
	open      OpenFunc

	buf     []byte
	pending *sink.Value
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(b *Bridge) {
		b.clock = clk
	}
}

// WithMetrics records into m instead of unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithOpener replaces the serial port opener.
func WithOpener(open OpenFunc) Option {
	return func(b *Bridge) {
		b.open = open
	}
}

// New validates cfg and returns a Bridge publishing to pub.
func New(cfg Config, pub sink.Publisher, logger *zap.SugaredLogger, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	b := &Bridge{
		cfg:       cfg,
		clock:     clock.New(),
		logger:    logger,
		publisher: pub,
		framer:    serial.NewFramer(cfg.MaxRecord),
		buf:       make([]byte, cfg.ReadSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = NewMetrics(nil)
	}
	if b.open == nil {
		b.open = SerialOpener(cfg)
	}

	b.monitor = NewMonitor(b.clock, cfg.Timeout)
	b.manager = NewManager(b.open, cfg, b.clock, b.metrics, b.logger)
	return b, nil
}

// Run publishes the fault sentinel, then loops until ctx is cancelled and
// closes the connection. A value left behind by an earlier process is never
// shown as current. Device and output failures are handled inside the loop
// and never end it.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.manager.Close("shutdown")

	b.logger.Infow("bridge started",
		"device", b.cfg.Device,
		"baud", b.cfg.BaudRate,
		"timeout", b.cfg.Timeout,
	)
	b.fault()
	b.flush(ctx)
	for ctx.Err() == nil {
		b.Step(ctx)
	}
	b.logger.Infow("bridge stopped")
	return nil
}

// Step runs one iteration: connect if needed, otherwise read once, check
// freshness and publish any valid reading or fault. It blocks for at most the read
// timeout, or the open window while disconnected.
func (b *Bridge) Step(ctx context.Context) {
	defer b.flush(ctx)

	if b.manager.Conn() == nil {
		b.connect(ctx)
		return
	}

	if err := b.read(); err != nil {
		b.handle(err)
	}

	if b.monitor.Expired() {
		b.handle(&Error{
			Kind: KindStale,
			Op:   b.cfg.Device,
			Err:  fmt.Errorf("%w for %v", ErrNoData, b.monitor.Timeout()),
		})
	}
}

// Monitor exposes the freshness monitor.
func (b *Bridge) Monitor() *Monitor {
	return b.monitor
}

// Connected reports whether a device connection is open.
func (b *Bridge) Connected() bool {
	return b.manager.Conn() != nil
}

func (b *Bridge) connect(ctx context.Context) {
	if _, err := b.manager.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		b.handle(err)
		return
	}
	b.framer.Reset()

	// Reconnecting never extends a Fresh window; only a Stale monitor gets
	// a new grace period, after the sentinel is out.
	if b.monitor.Expired() {
		b.fault()
	}
	if b.monitor.State() == Stale {
		b.monitor.Reset()
	}
}

func (b *Bridge) read() error {
	n, err := b.manager.Conn().Read(b.buf)
	if err != nil {
		return &Error{Kind: KindStream, Op: "read " + b.cfg.Device, Err: err}
	}
	if n == 0 {
		return nil
	}

	b.framer.Push(b.buf[:n])
	for record := range b.framer.Records() {
		m, err := ParseRecord(record, b.clock.Now())
		if err != nil {
			b.handle(err)
			continue
		}
		b.accept(m)
	}
	return nil
}

func (b *Bridge) accept(m Measurement) {
	b.metrics.Records.WithLabelValues("valid").Inc()
	if b.monitor.Accept(m) {
		b.logger.Infow("valid data resumed", "celsius", m.Celsius)
	}
	v := sink.Millidegrees(m.Millidegrees())
	b.pending = &v
}

// handle routes err to the recovery for its kind.
func (b *Bridge) handle(err error) {
	switch KindOf(err) {
	case KindParse:
		b.metrics.Records.WithLabelValues("invalid").Inc()
		b.logger.Debugw("discarding record", "error", err)
	case KindConnect:
		b.logger.Errorw("could not connect", "error", err)
		b.fault()
	case KindStream:
		b.logger.Warnw("stream failure", "error", err)
		b.manager.Close("stream failure")
		b.framer.Reset()
	case KindStale:
		b.logger.Warnw("data stale", "error", err)
		b.fault()
		b.manager.Close("stale")
		b.framer.Reset()
		b.monitor.Reset()
	case KindWrite:
		b.metrics.PublishErrors.Inc()
		b.logger.Errorw("publish failed", "error", err)
	default:
		b.logger.Errorw("unexpected error", "error", err)
	}
}

// fault queues the sentinel once per transition into Stale.
func (b *Bridge) fault() {
	if !b.monitor.MarkStale() {
		return
	}
	b.metrics.Faults.Inc()
	b.logger.Warnw("publishing fault sentinel", "value", sink.FaultSentinel)
	v := sink.Fault()
	b.pending = &v
}

// flush publishes the pending value. On failure it stays pending and is
// retried next step unless a newer value replaces it.
func (b *Bridge) flush(ctx context.Context) {
	if b.pending == nil {
		return
	}
	v := *b.pending
	if err := b.publisher.Publish(ctx, v); err != nil {
		b.handle(&Error{Kind: KindWrite, Op: "publish " + v.String(), Err: err})
		return
	}
	b.pending = nil

	b.metrics.Value.Set(float64(v.Millidegrees()))
	if v.IsFault() {
		b.metrics.Stale.Set(1)
	} else {
		b.metrics.Stale.Set(0)
	}
}
