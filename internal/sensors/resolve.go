package sensors

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/protocol"
)

// ResolveCycle pairs each decoded record with its configured Spec.
//
// Records with no configuration are dropped and reported: one log line per
// record, in the fixed operator-facing format
//
//	Failed to find sensor config for {gateway_id}:{key} - value {value}
//
// and one ErrUnmappedKey diagnostic in the returned slice. Neither is
// fatal; the remaining records resolve normally.
//
// Parameters:
//   - gatewayID: Gateway the records came from
//   - records: Decoded records in wire order
//   - snap: The registry snapshot for this cycle
//   - pollTime: Timestamp stamped on every reading
//   - logger: Receives unmapped-key lines (nil for none)
//
// Returns:
//   - []Reading: Resolved readings in wire order
//   - []error: One ErrUnmappedKey diagnostic per dropped record
func ResolveCycle(gatewayID string, records []protocol.FieldRecord, snap *Snapshot, pollTime time.Time, logger Logger) ([]Reading, []error) {
	if logger == nil {
		logger = noopLogger{}
	}

	readings := make([]Reading, 0, len(records))
	var unmapped []error

	for _, rec := range records {
		spec, ok := snap.Resolve(gatewayID, rec.Key)
		if !ok {
			logger.Warn(UnmappedMessage(gatewayID, rec.Key, rec.Value),
				"gateway_id", gatewayID,
				"key", rec.Key,
				"type_code", rec.TypeCode,
			)
			unmapped = append(unmapped, fmt.Errorf("%w: %s:%s", ErrUnmappedKey, gatewayID, rec.Key))
			continue
		}

		readings = append(readings, Reading{
			GatewayID: gatewayID,
			Key:       rec.Key,
			Value:     rec.Value,
			PollTime:  pollTime,
			Spec:      spec,
		})
	}

	return readings, unmapped
}

// UnmappedMessage formats the diagnostic line for a record with no
// sensor configuration.
func UnmappedMessage(gatewayID, key string, value protocol.Value) string {
	return fmt.Sprintf("Failed to find sensor config for %s:%s - value %s", gatewayID, key, value)
}
