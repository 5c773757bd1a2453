package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luhtfiimanal/go-serial-bridge/internal/bridge"
	"github.com/luhtfiimanal/go-serial-bridge/internal/sink"
)

func parse(t *testing.T, args ...string) (options, error) {
	t.Helper()
	var got options
	app := newApp(func(_ context.Context, opts options) error {
		got = opts
		return nil
	})
	err := app.Run(append([]string{"serialbridge"}, args...))
	return got, err
}

func TestApp_Defaults(t *testing.T) {
	opts, err := parse(t)
	require.NoError(t, err)

	require.Equal(t, bridge.DefaultConfig(), opts.Bridge)
	require.Equal(t, sink.DefaultPath, opts.Output)
	require.True(t, opts.Lock)
	require.Empty(t, opts.MQTT.Broker)
	require.Empty(t, opts.MetricsAddr)
	require.Equal(t, "info", opts.LogLevel)
}

func TestApp_Flags(t *testing.T) {
	opts, err := parse(t,
		"--device", "/dev/ttyACM0",
		"--baud", "115200",
		"--output", "/tmp/chamber.temp",
		"--timeout", "5s",
		"--read-timeout", "100ms",
		"--lock=false",
		"--mqtt-broker", "tcp://broker:1883",
		"--mqtt-qos", "2",
		"--log-format", "json",
	)
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyACM0", opts.Bridge.Device)
	require.Equal(t, 115200, opts.Bridge.BaudRate)
	require.Equal(t, 5*time.Second, opts.Bridge.Timeout)
	require.Equal(t, 100*time.Millisecond, opts.Bridge.ReadTimeout)
	require.Equal(t, "/tmp/chamber.temp", opts.Output)
	require.False(t, opts.Lock)
	require.Equal(t, "tcp://broker:1883", opts.MQTT.Broker)
	require.Equal(t, byte(2), opts.MQTT.QoS)
	require.Equal(t, "json", opts.LogFormat)
}

func TestApp_Env(t *testing.T) {
	t.Setenv("SERIALBRIDGE_DEVICE", "/dev/ttyUSB3")
	t.Setenv("SERIALBRIDGE_TIMEOUT", "10s")

	opts, err := parse(t)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB3", opts.Bridge.Device)
	require.Equal(t, 10*time.Second, opts.Bridge.Timeout)
}

func TestApp_InvalidQoS(t *testing.T) {
	_, err := parse(t, "--mqtt-qos", "3")
	require.ErrorContains(t, err, "mqtt-qos")
}

func TestRun_InvalidConfig(t *testing.T) {
	opts, err := parse(t, "--retry-delay", "0s")
	require.NoError(t, err)
	require.ErrorContains(t, run(context.Background(), opts), "retry delay")
}

func TestServeMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "serialbridge_test_total", Help: "test"}))
	shutdown := serveMetrics(lis, reg, zap.New(core).Sugar())

	resp, err := http.Get("http://" + lis.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "serialbridge_test_total")

	shutdown()
	require.Zero(t, logs.FilterMessage("metrics server shutdown").Len())
}

func TestServeMetrics_ShutdownErrorLogged(t *testing.T) {
	prev := metricsShutdownTimeout
	metricsShutdownTimeout = 50 * time.Millisecond
	defer func() { metricsShutdownTimeout = prev }()

	core, logs := observer.New(zapcore.InfoLevel)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	shutdown := serveMetrics(lis, prometheus.NewRegistry(), zap.New(core).Sugar())

	// a half-sent request keeps the connection active past the deadline
	conn, err := net.Dial("tcp", lis.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET /metrics HTTP/1.1\r\nHost: x\r\n"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	shutdown()
	entries := logs.FilterMessage("metrics server shutdown").All()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].ContextMap()["error"], context.DeadlineExceeded.Error())
}
