package scenarios

import (
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/features"
	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/optimizer"
)

// NoAction is the expectation of a train that must not get a suggestion.
const NoAction = "none"

// Mismatch is a case whose outcome differs from its expectation.
type Mismatch struct {
	Scenario string `json:"scenario"`
	TrainID  string `json:"train_id"`
	Field    string `json:"field"`
	Want     string `json:"want"`
	Got      string `json:"got"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s/%s: %s want %s, got %s", m.Scenario, m.TrainID, m.Field, m.Want, m.Got)
}

// Outcome summarizes one scenario run.
type Outcome struct {
	Scenario   string     `json:"scenario"`
	Cases      int        `json:"cases"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Passed reports whether every case met its expectation.
func (o Outcome) Passed() bool { return len(o.Mismatches) == 0 }

// Runner evaluates scenarios against a trained model.
type Runner struct {
	Model  *classifier.TrainedModel
	Policy features.Policy
}

// Run predicts every case of sc and compares the outcome.
func (r Runner) Run(sc *Scenario) (Outcome, error) {
	out := Outcome{Scenario: sc.Name, Cases: len(sc.Cases)}
	raws := make([]model.RawTrain, len(sc.Cases))
	for i, c := range sc.Cases {
		raw, err := c.Train.ToRaw()
		if err != nil {
			return out, err
		}
		raws[i] = raw
	}
	p := r.Policy
	if sc.Now != nil {
		now := *sc.Now
		p.Now = func() time.Time { return now }
	}
	recs, err := features.NewIngester(p).Ingest(raws)
	if err != nil {
		return out, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	pred, err := r.Model.Predict(recs)
	if err != nil {
		return out, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	sugg, err := optimizer.Suggest(recs, pred.Labels)
	if err != nil {
		return out, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	actions := make(map[string]model.Action, len(sugg))
	for _, s := range sugg {
		actions[s.TrainID] = s.Action
	}
	for i, c := range sc.Cases {
		id := recs[i].ID
		miss := func(field, want, got string) {
			out.Mismatches = append(out.Mismatches, Mismatch{Scenario: sc.Name, TrainID: id, Field: field, Want: want, Got: got})
		}
		label, prob := pred.Labels[i], pred.Probabilities[i]
		if e := c.Expect.Label; e != nil && *e != label {
			miss("label", fmt.Sprint(*e), fmt.Sprint(label))
		}
		if e := c.Expect.MinProbability; e != nil && prob < *e {
			miss("probability", fmt.Sprintf(">= %.2f", *e), fmt.Sprintf("%.3f", prob))
		}
		if e := c.Expect.MaxProbability; e != nil && prob > *e {
			miss("probability", fmt.Sprintf("<= %.2f", *e), fmt.Sprintf("%.3f", prob))
		}
		if len(c.Expect.Actions) > 0 {
			got := NoAction
			if a, ok := actions[id]; ok {
				got = string(a)
			}
			if !slices.Contains(c.Expect.Actions, got) {
				miss("action", fmt.Sprint(c.Expect.Actions), got)
			}
		}
	}
	return out, nil
}
