// Command serialbridge publishes a serial temperature sensor's readings to a
// file polled by a printer host, writing -150000 whenever the readings stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-serial-bridge/internal/bridge"
	"github.com/luhtfiimanal/go-serial-bridge/internal/logging"
	"github.com/luhtfiimanal/go-serial-bridge/internal/sink"
)

const envPrefix = "SERIALBRIDGE_"

var metricsShutdownTimeout = time.Second

// options is everything the command line controls.
type options struct {
	Bridge      bridge.Config
	Output      string
	Lock        bool
	MQTT        sink.MQTTConfig
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

func main() {
	if err := newApp(run).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "serialbridge:", err)
		os.Exit(1)
	}
}

func env(name string) []string {
	return []string{envPrefix + name}
}

func newApp(action func(ctx context.Context, opts options) error) *cli.App {
	defaults := bridge.DefaultConfig()

	return &cli.App{
		Name:  "serialbridge",
		Usage: "bridge T:<celsius> serial records to a millidegree file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "device", Value: defaults.Device, Usage: "serial device `PATH`", EnvVars: env("DEVICE")},
			&cli.IntFlag{Name: "baud", Value: defaults.BaudRate, Usage: "serial baud rate", EnvVars: env("BAUD")},
			&cli.StringFlag{Name: "output", Value: sink.DefaultPath, Usage: "output `FILE`", EnvVars: env("OUTPUT")},
			&cli.DurationFlag{Name: "timeout", Value: defaults.Timeout, Usage: "publish the fault value after this long without a valid record", EnvVars: env("TIMEOUT")},
			&cli.DurationFlag{Name: "read-timeout", Value: defaults.ReadTimeout, Usage: "maximum wait of a single read", EnvVars: env("READ_TIMEOUT")},
			&cli.DurationFlag{Name: "open-timeout", Value: defaults.OpenTimeout, Usage: "reopen window before a fault is published", EnvVars: env("OPEN_TIMEOUT")},
			&cli.DurationFlag{Name: "retry-delay", Value: defaults.RetryDelay, Usage: "pause between open attempts", EnvVars: env("RETRY_DELAY")},
			&cli.BoolFlag{Name: "lock", Value: true, Usage: "hold a pid lock next to the output file", EnvVars: env("LOCK")},
			&cli.StringFlag{Name: "mqtt-broker", Usage: "mirror values to this broker `URL` (disabled when empty)", EnvVars: env("MQTT_BROKER")},
			&cli.StringFlag{Name: "mqtt-topic", Value: "serialbridge/temperature", Usage: "retained MQTT topic", EnvVars: env("MQTT_TOPIC")},
			&cli.StringFlag{Name: "mqtt-client-id", Value: "serialbridge", Usage: "MQTT client id", EnvVars: env("MQTT_CLIENT_ID")},
			&cli.UintFlag{Name: "mqtt-qos", Value: 1, Usage: "MQTT QoS (0, 1 or 2)", EnvVars: env("MQTT_QOS")},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this `ADDR` (disabled when empty)", EnvVars: env("METRICS_ADDR")},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", EnvVars: env("LOG_LEVEL")},
			&cli.StringFlag{Name: "log-format", Value: "console", Usage: "console or json", EnvVars: env("LOG_FORMAT")},
		},
		Action: func(c *cli.Context) error {
			if c.Uint("mqtt-qos") > 2 {
				return fmt.Errorf("invalid mqtt-qos %d", c.Uint("mqtt-qos"))
			}

			cfg := defaults
			cfg.Device = c.String("device")
			cfg.BaudRate = c.Int("baud")
			cfg.Timeout = c.Duration("timeout")
			cfg.ReadTimeout = c.Duration("read-timeout")
			cfg.OpenTimeout = c.Duration("open-timeout")
			cfg.RetryDelay = c.Duration("retry-delay")

			return action(c.Context, options{
				Bridge: cfg,
				Output: c.String("output"),
				Lock:   c.Bool("lock"),
				MQTT: sink.MQTTConfig{
					Broker:   c.String("mqtt-broker"),
					ClientID: c.String("mqtt-client-id"),
					Topic:    c.String("mqtt-topic"),
					QoS:      byte(c.Uint("mqtt-qos")),
				},
				MetricsAddr: c.String("metrics-addr"),
				LogLevel:    c.String("log-level"),
				LogFormat:   c.String("log-format"),
			})
		},
	}
}

func run(ctx context.Context, opts options) (err error) {
	if err := opts.Bridge.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(opts.LogLevel, opts.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var fileOpts []sink.FileOption
	if opts.Lock {
		fileOpts = append(fileOpts, sink.WithLock())
	}
	file, err := sink.NewFile(opts.Output, fileOpts...)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	publishers := sink.Fanout{file}
	if opts.MQTT.Broker != "" {
		mirror, dialErr := sink.DialMQTT(opts.MQTT)
		if dialErr != nil {
			return dialErr
		}
		defer multierr.AppendInvoke(&err, multierr.Close(mirror))
		publishers = append(publishers, mirror)
		logger.Infow("mirroring to mqtt", "broker", opts.MQTT.Broker, "topic", opts.MQTT.Topic)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := bridge.NewMetrics(reg)
	if opts.MetricsAddr != "" {
		lis, listenErr := net.Listen("tcp", opts.MetricsAddr)
		if listenErr != nil {
			return fmt.Errorf("metrics listener: %w", listenErr)
		}
		shutdown := serveMetrics(lis, reg, logger)
		defer shutdown()
	}

	b, err := bridge.New(opts.Bridge, publishers, logger, bridge.WithMetrics(metrics))
	if err != nil {
		return err
	}
	logger.Infow("publishing", "output", file.Path())
	return b.Run(ctx)
}

// serveMetrics exposes reg over HTTP on lis and returns a function stopping
// the server.
func serveMetrics(lis net.Listener, reg *prometheus.Registry, logger *zap.SugaredLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infow("serving metrics", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warnw("metrics server shutdown", "error", err)
		}
	}
}
