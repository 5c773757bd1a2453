// Package sink publishes the bridge output.
//
// File is the primary sink: it replaces the output file atomically so a
// consumer polling it never reads a half-written line. MQTT mirrors the same
// value to a retained topic and Fanout writes to several sinks at once.
package sink
