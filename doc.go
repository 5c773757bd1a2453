// Package serial provides a minimal, Linux-only serial port and a line framer
// for embedded devices that stream newline-terminated text records.
//
// The package is built for bridges that must never block forever on a quiet
// device: every Read waits at most Config.ReadTimeout and returns 0, nil when
// nothing arrived, so a single goroutine can read, check timers and publish.
//
// Features:
//   - Raw syscall-based serial I/O on Linux, no buffering delays
//   - Poll-based reads with a per-read timeout
//   - Self-pipe mechanism for killability
//   - Framer that tolerates partial reads, drops non-ASCII bytes and caps
//     runaway unterminated input
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	port, err := serial.Open(serial.Config{
//	    Device:      "/dev/ttyUSB0",
//	    BaudRate:    9600,
//	    ReadTimeout: 200 * time.Millisecond,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	framer := serial.NewFramer(0)
//	buf := make([]byte, 64)
//	for {
//	    n, err := port.Read(buf)
//	    if err != nil {
//	        log.Println("read error:", err)
//	        return
//	    }
//	    framer.Push(buf[:n])
//	    for record := range framer.Records() {
//	        fmt.Println("Received:", record)
//	    }
//	}
package serial
