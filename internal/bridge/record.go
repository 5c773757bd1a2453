package bridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RecordPrefix tags a telemetry record.
const RecordPrefix = "T:"

// maxCelsius keeps Millidegrees inside int64.
const maxCelsius = math.MaxInt64 / 1000

// Measurement is a decoded temperature and the time it was read.
type Measurement struct {
	Celsius float64
	At      time.Time
}

// Millidegrees returns the value in thousandths of a degree, truncated toward zero.
func (m Measurement) Millidegrees() int64 {
	return int64(m.Celsius * 1000)
}

// ParseRecord decodes a "T:<float>" record received at the given time.
// Anything else is reported as a KindParse error.
func ParseRecord(record string, at time.Time) (Measurement, error) {
	record = strings.TrimSpace(record)
	if !strings.HasPrefix(record, RecordPrefix) {
		return Measurement{}, parseError(record, fmt.Errorf("%w: missing %q tag", ErrMalformedRecord, RecordPrefix))
	}

	value := strings.TrimSpace(strings.TrimPrefix(record, RecordPrefix))
	celsius, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Measurement{}, parseError(record, fmt.Errorf("%w: %w", ErrMalformedRecord, err))
	}
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) || math.Abs(celsius) >= maxCelsius {
		return Measurement{}, parseError(record, fmt.Errorf("%w: value %q out of range", ErrMalformedRecord, value))
	}

	return Measurement{Celsius: celsius, At: at}, nil
}

func parseError(record string, err error) error {
	return &Error{Kind: KindParse, Op: strconv.Quote(record), Err: err}
}
