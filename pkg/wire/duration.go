package wire

import (
	"time"

	"spacetimedb.com/client/pkg/codec"
)

// readDurationMicros decodes an i64-microseconds wire duration field.
func readDurationMicros(r *codec.Reader) (time.Duration, error) {
	micros, err := r.ReadI64()
	if err != nil {
		return 0, err
	}
	return time.Duration(micros) * time.Microsecond, nil
}
