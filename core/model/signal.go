package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SignalState is the aspect of the next signal ahead of a train.
// The numeric values are the feature codes used by the classifier.
type SignalState int

const (
	SignalRed SignalState = iota
	SignalYellow
	SignalGreen
)

// String returns a human-readable representation of the signal state.
func (s SignalState) String() string {
	switch s {
	case SignalRed:
		return "red"
	case SignalYellow:
		return "yellow"
	case SignalGreen:
		return "green"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known aspects.
func (s SignalState) Valid() bool {
	return s >= SignalRed && s <= SignalGreen
}

// ParseSignalState accepts "red", "yellow", "green" or their codes "0", "1", "2".
func ParseSignalState(v string) (SignalState, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "red", "0":
		return SignalRed, nil
	case "yellow", "amber", "1":
		return SignalYellow, nil
	case "green", "2":
		return SignalGreen, nil
	default:
		return 0, fmt.Errorf("unknown signal state %q", v)
	}
}

// UnmarshalJSON decodes either the numeric code or the aspect name.
func (s *SignalState) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		st := SignalState(int(n))
		if float64(st) != n || !st.Valid() {
			return fmt.Errorf("signal state out of range: %v", n)
		}
		*s = st
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("signal state must be a number or a string")
	}
	st, err := ParseSignalState(str)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
