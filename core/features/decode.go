package features

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kilianp07/railflow/core/model"
)

// DecodeTrains parses a JSON array of train objects. Elements are decoded one
// by one so that a malformed train is reported with its index. Malformed
// optional fields are dropped and later backfilled; a non-numeric speed is a
// SchemaError.
func DecodeTrains(data []byte) ([]model.RawTrain, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode trains: %w", err)
	}
	out := make([]model.RawTrain, 0, len(items))
	for i, item := range items {
		tr, err := decodeTrain(i, item)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

func decodeTrain(i int, item json.RawMessage) (model.RawTrain, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return model.RawTrain{}, &SchemaError{Index: i, Reason: "not an object"}
	}
	for name, v := range fields {
		if isNull(v) {
			continue
		}
		switch {
		case numericFields[name]:
			var f float64
			if json.Unmarshal(v, &f) == nil {
				continue
			}
			if name == requiredField {
				return model.RawTrain{}, &SchemaError{Index: i, Field: name, Reason: "not a number"}
			}
			fields[name] = nullValue
		case name == "signal_status":
			var st model.SignalState
			if json.Unmarshal(v, &st) != nil {
				fields[name] = nullValue
			}
		case textFields[name]:
			var n json.Number
			if json.Unmarshal(v, &n) == nil {
				fields[name], _ = json.Marshal(n.String())
				continue
			}
			var str string
			if json.Unmarshal(v, &str) != nil {
				fields[name] = nullValue
			}
		}
	}
	clean, err := json.Marshal(fields)
	if err != nil {
		return model.RawTrain{}, &SchemaError{Index: i, Reason: err.Error()}
	}
	var tr model.RawTrain
	if err := json.Unmarshal(clean, &tr); err != nil {
		return model.RawTrain{}, &SchemaError{Index: i, Reason: err.Error()}
	}
	return tr, nil
}

// requiredField has no default; everything else is backfilled by Ingest.
const requiredField = "speed"

var nullValue = json.RawMessage("null")

var numericFields = map[string]bool{
	"speed":                   true,
	"delay":                   true,
	"lat":                     true,
	"lon":                     true,
	"occupancy":               true,
	"distance_to_next":        true,
	"distance_to_destination": true,
	"time_to_clear":           true,
	"hour_of_day":             true,
	"day_of_week":             true,
}

// Train numbers are sometimes sent as JSON numbers.
var textFields = map[string]bool{
	"id":           true,
	"number":       true,
	"name":         true,
	"category":     true,
	"station":      true,
	"station_type": true,
	"from":         true,
	"to":           true,
	"status":       true,
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
