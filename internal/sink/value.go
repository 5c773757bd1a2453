package sink

import (
	"context"
	"strconv"
)

// FaultSentinel is published instead of a reading when data is stale or
// unavailable. -150 degrees is outside anything the consumer accepts, so its
// own range check trips.
const FaultSentinel int64 = -150000

// Value is what a Publisher writes: a reading in millidegrees or the fault sentinel.
type Value struct {
	milli int64
	fault bool
}

// Millidegrees returns a Value holding a reading.
func Millidegrees(milli int64) Value {
	return Value{milli: milli}
}

// Fault returns the fault Value.
func Fault() Value {
	return Value{fault: true}
}

// IsFault reports whether v is the fault sentinel.
func (v Value) IsFault() bool {
	return v.fault
}

// Millidegrees returns the integer written to the output.
func (v Value) Millidegrees() int64 {
	if v.fault {
		return FaultSentinel
	}
	return v.milli
}

func (v Value) String() string {
	return strconv.FormatInt(v.Millidegrees(), 10)
}

// Encode returns the output line, newline included.
func (v Value) Encode() []byte {
	return append(strconv.AppendInt(nil, v.Millidegrees(), 10), '\n')
}

// Publisher delivers a Value to a consumer.
type Publisher interface {
	Publish(ctx context.Context, v Value) error
}
