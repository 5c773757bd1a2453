// Package bridge keeps a downstream consumer supplied with the latest sensor
// reading from a serial device.
//
// # Loop
//
// A single goroutine runs Bridge.Run. Each Step either (re)opens the device
// through the Manager or performs one bounded read, feeds the bytes to a
// serial.Framer, parses complete "T:<celsius>" records and publishes the
// newest valid one in millidegrees.
//
// # Faults
//
// Run publishes the fault sentinel before anything else. The Monitor restarts
// its timeout window on every valid record, and on a reconnect only once the
// sentinel is out, so reconnecting never keeps an old reading alive. When the
// window passes, the fault sentinel is published once, the connection is
// closed and reopened and the partial record buffer dropped. A device that
// cannot be opened within the open window is reported the same way while the
// Manager keeps retrying.
//
// # Errors
//
// Failures carry a Kind (connect, stream, parse, stale, write) that selects
// the recovery. None of them stop the loop; only context cancellation does.
package bridge
