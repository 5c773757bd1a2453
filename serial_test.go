package serial

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

func openPTY(t *testing.T, readTimeout time.Duration) (*Port, func() error, func([]byte)) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := Open(Config{
		Device:      slave.Name(),
		BaudRate:    9600,
		ReadTimeout: readTimeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })

	write := func(b []byte) {
		_, err := master.Write(b)
		require.NoError(t, err)
	}
	return port, master.Close, write
}

func TestPort_BasicRead(t *testing.T) {
	port, _, write := openPTY(t, 50*time.Millisecond)

	write([]byte("hello\n"))

	framer := NewFramer(0)
	buf := make([]byte, 64)
	deadline := time.Now().Add(time.Second)
	var records []string
	for len(records) == 0 && time.Now().Before(deadline) {
		n, err := port.Read(buf)
		require.NoError(t, err)
		framer.Push(buf[:n])
		for r := range framer.Records() {
			records = append(records, r)
		}
	}
	require.Equal(t, []string{"hello"}, records)
}

func TestPort_ReadTimeout(t *testing.T) {
	port, _, _ := openPTY(t, 50*time.Millisecond)

	start := time.Now()
	n, err := port.Read(make([]byte, 64))
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Zero(t, n)
	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	require.Less(t, elapsed, time.Second)
}

func TestPort_Killability(t *testing.T) {
	// Zero timeout: Read only returns on data, error or Close.
	port, _, _ := openPTY(t, 0)

	done := make(chan error, 1)
	go func() {
		_, err := port.Read(make([]byte, 64))
		done <- err
	}()

	// Give the goroutine a chance to block
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, port.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for Read to return after Close")
	}

	// Should be a no-op due to closeOnce
	require.NoError(t, port.Close())

	_, err := port.Read(make([]byte, 64))
	require.ErrorIs(t, err, ErrClosed)
}

func TestPort_ErrorPropagation(t *testing.T) {
	port, closeMaster, _ := openPTY(t, 20*time.Millisecond)

	// Simulate device disconnect by closing master
	require.NoError(t, closeMaster())

	buf := make([]byte, 64)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := port.Read(buf); err != nil {
			return
		}
	}
	t.Fatal("timeout waiting for error after device disconnect")
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{Device: filepath.Join(t.TempDir(), "missing"), BaudRate: 9600})
	require.Error(t, err)

	_, err = Open(Config{Device: "/dev/null", BaudRate: 12345})
	require.ErrorContains(t, err, "unsupported baud rate")
}

func TestPollTimeout(t *testing.T) {
	require.Equal(t, -1, pollTimeout(0))
	require.Equal(t, 1, pollTimeout(time.Microsecond))
	require.Equal(t, 200, pollTimeout(200*time.Millisecond))
}
