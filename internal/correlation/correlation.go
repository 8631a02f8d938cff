// Package correlation keeps the short history of sign-in correlation ids that
// the risk provider later uses to match authentication results. The history
// lives in the user's app metadata as a JSON array serialized into a string.
package correlation

import (
	"encoding/json"
	"sort"

	"lumina/login-gate/internal/domain"
)

// Append adds {eventTime, correlationID} to the history in blob and returns
// the new serialized history: newest first, at most domain.MaxCorrelationIDs
// entries. An empty or unreadable blob is treated as an empty history.
func Append(blob string, eventTime int64, correlationID string) string {
	records := append(Decode(blob), domain.CorrelationRecord{
		EventTime:     eventTime,
		CorrelationID: correlationID,
	})

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EventTime > records[j].EventTime
	})
	if len(records) > domain.MaxCorrelationIDs {
		records = records[:domain.MaxCorrelationIDs]
	}

	out, err := json.Marshal(records)
	if err != nil {
		// CorrelationRecord only holds an int64 and a string.
		return "[]"
	}
	return string(out)
}

// Decode parses a serialized history. It never fails.
func Decode(blob string) []domain.CorrelationRecord {
	if blob == "" {
		return nil
	}
	var records []domain.CorrelationRecord
	if err := json.Unmarshal([]byte(blob), &records); err != nil {
		return nil
	}
	return records
}

// FromMetadata extracts the stored history blob from app metadata. A value
// that is not a string is ignored.
func FromMetadata(metadata map[string]any) string {
	if s, ok := metadata[domain.CorrelationIDsKey].(string); ok {
		return s
	}
	return ""
}
