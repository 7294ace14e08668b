package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/railflow/core/features"
	"github.com/kilianp07/railflow/core/model"
)

// Keys of the persisted model container.
const (
	KeyModel        = "model"
	KeyScaler       = "scaler"
	KeyLabelEncoder = "label_encoder"
	KeyFeatureNames = "feature_names"
	KeyIsTrained    = "is_trained"
)

var blobKeys = []string{KeyModel, KeyScaler, KeyLabelEncoder, KeyFeatureNames, KeyIsTrained}

// ErrInvalidBlob is wrapped by every UnmarshalBlob failure.
var ErrInvalidBlob = errors.New("invalid model blob")

type modelPayload struct {
	Family   Family    `json:"family"`
	Forest   *Forest   `json:"forest,omitempty"`
	Boosting *Boosting `json:"boosting,omitempty"`
}

// MarshalBlob serializes m into the persisted container.
func (m *TrainedModel) MarshalBlob() ([]byte, error) {
	if m == nil || !m.trained {
		return nil, ErrModelNotTrained
	}
	return json.Marshal(map[string]any{
		KeyModel:        modelPayload{Family: m.family, Forest: m.forest, Boosting: m.boosting},
		KeyScaler:       m.scaler,
		KeyLabelEncoder: m.engineer.Encoder,
		KeyFeatureNames: m.engineer.Names,
		KeyIsTrained:    m.trained,
	})
}

// UnmarshalBlob restores a TrainedModel. Every key must be present with the
// expected type.
func UnmarshalBlob(data []byte) (*TrainedModel, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	for _, k := range blobKeys {
		if v, ok := raw[k]; !ok || string(v) == "null" {
			return nil, fmt.Errorf("%w: missing key %q", ErrInvalidBlob, k)
		}
	}

	var (
		payload modelPayload
		scaler  Scaler
		enc     features.Encoder
		names   []string
		trained bool
	)
	targets := map[string]any{
		KeyModel:        &payload,
		KeyScaler:       &scaler,
		KeyLabelEncoder: &enc,
		KeyFeatureNames: &names,
		KeyIsTrained:    &trained,
	}
	for _, k := range blobKeys {
		if err := strictDecode(raw[k], targets[k]); err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidBlob, k, err)
		}
	}

	eng := &features.Engineer{Encoder: enc, Names: names}
	if err := validate(payload, scaler, eng); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	return &TrainedModel{
		family:   payload.Family,
		forest:   payload.Forest,
		boosting: payload.Boosting,
		scaler:   scaler,
		engineer: eng,
		trained:  trained,
	}, nil
}

func strictDecode(data json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func validate(p modelPayload, s Scaler, eng *features.Engineer) error {
	width := len(eng.Names)
	if width == 0 {
		return errors.New("empty feature list")
	}
	if _, err := eng.Transform([]model.TrainRecord{{}}); err != nil {
		return err
	}
	if eng.Encoder.Category == nil || eng.Encoder.StationClass == nil {
		return errors.New("label encoder tables missing")
	}
	if len(s.Mean) != width || len(s.Scale) != width {
		return fmt.Errorf("scaler has %d/%d columns, want %d", len(s.Mean), len(s.Scale), width)
	}
	for j, v := range s.Scale {
		if v == 0 {
			return fmt.Errorf("scaler column %d has zero scale", j)
		}
	}
	var trees []Tree
	switch p.Family {
	case FamilyForest:
		if p.Forest == nil {
			return errors.New("forest payload missing")
		}
		trees = p.Forest.Trees
	case FamilyBoosting:
		if p.Boosting == nil {
			return errors.New("boosting payload missing")
		}
		trees = p.Boosting.Trees
	default:
		return fmt.Errorf("unknown model family %q", p.Family)
	}
	if len(trees) == 0 {
		return errors.New("model has no trees")
	}
	for i := range trees {
		if !trees[i].valid(width) {
			return fmt.Errorf("tree %d is malformed", i)
		}
	}
	return nil
}
