// Package optimizer turns congestion predictions into mitigation suggestions.
package optimizer

import (
	"fmt"
	"sort"

	"github.com/kilianp07/railflow/core/model"
)

// Rule proposes an action when its condition holds for a congested train.
type Rule struct {
	Action      model.Action
	Priority    model.Priority
	Improvement float64
	Applies     func(r model.TrainRecord) bool
	Reason      func(r model.TrainRecord) string
}

// rules are evaluated in this order; several may fire for one train.
var rules = []Rule{
	{
		Action:      model.ActionIncreaseSpeed,
		Priority:    model.PriorityHigh,
		Improvement: 0.30,
		Applies:     func(r model.TrainRecord) bool { return r.Speed < 30 },
		Reason: func(r model.TrainRecord) string {
			return fmt.Sprintf("low speed (%.1f km/h) is holding the section", r.Speed)
		},
	},
	{
		Action:      model.ActionReroute,
		Priority:    model.PriorityHigh,
		Improvement: 0.40,
		Applies:     func(r model.TrainRecord) bool { return r.Occupancy >= 3 },
		Reason: func(r model.TrainRecord) string {
			return fmt.Sprintf("section occupied by %d trains", r.Occupancy)
		},
	},
	{
		Action:      model.ActionWait,
		Priority:    model.PriorityMedium,
		Improvement: 0.20,
		Applies:     func(r model.TrainRecord) bool { return r.Signal == model.SignalRed },
		Reason:      func(model.TrainRecord) string { return "red signal ahead" },
	},
	{
		Action:      model.ActionExpressPriority,
		Priority:    model.PriorityHigh,
		Improvement: 0.35,
		Applies:     func(r model.TrainRecord) bool { return r.Delay > 20 },
		Reason: func(r model.TrainRecord) string {
			return fmt.Sprintf("running %.0f minutes late", r.Delay)
		},
	},
	{
		Action:      model.ActionScheduleAdjustment,
		Priority:    model.PriorityMedium,
		Improvement: 0.25,
		Applies:     func(r model.TrainRecord) bool { return model.IsPeakHour(r.HourOfDay) },
		Reason: func(r model.TrainRecord) string {
			return fmt.Sprintf("peak hour (%02d:00)", r.HourOfDay)
		},
	},
}

// monitorRule is suggested when no rule fires.
var monitorRule = Rule{
	Action:      model.ActionMonitor,
	Priority:    model.PriorityLow,
	Improvement: 0.10,
	Reason:      func(model.TrainRecord) string { return "no specific cause identified, keep monitoring" },
}

// Rules returns the rules in evaluation order.
func Rules() []Rule { return append([]Rule(nil), rules...) }

// Suggest returns one suggestion per record predicted congested, in input
// order. It fails when the slices differ in length.
func Suggest(recs []model.TrainRecord, predictions []int) ([]model.Suggestion, error) {
	if len(recs) != len(predictions) {
		return nil, fmt.Errorf("suggest: %d records but %d predictions", len(recs), len(predictions))
	}
	out := make([]model.Suggestion, 0)
	for i, r := range recs {
		if predictions[i] != 1 {
			continue
		}
		out = append(out, Best(r))
	}
	return out, nil
}

// Candidates returns the suggestions of every rule that fires for r, in rule order.
func Candidates(r model.TrainRecord) []model.Suggestion {
	var out []model.Suggestion
	for _, rule := range rules {
		if rule.Applies(r) {
			out = append(out, rule.suggestion(r))
		}
	}
	return out
}

// Best selects the highest-severity candidate for r. Equal priorities are
// resolved by the larger expected improvement, then by rule order.
func Best(r model.TrainRecord) model.Suggestion {
	cands := Candidates(r)
	if len(cands) == 0 {
		return monitorRule.suggestion(r)
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if outranks(c, best) {
			best = c
		}
	}
	return best
}

func outranks(a, b model.Suggestion) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	return a.ExpectedImprovement > b.ExpectedImprovement
}

func (rule Rule) suggestion(r model.TrainRecord) model.Suggestion {
	return model.Suggestion{
		TrainID:             r.ID,
		Action:              rule.Action,
		Priority:            rule.Priority,
		ExpectedImprovement: rule.Improvement,
		Reason:              rule.Reason(r),
	}
}

// TopN returns at most n suggestions ordered by priority then expected
// improvement. The sort is stable so input order breaks remaining ties.
func TopN(s []model.Suggestion, n int) []model.Suggestion {
	out := append([]model.Suggestion(nil), s...)
	sort.SliceStable(out, func(i, j int) bool { return outranks(out[i], out[j]) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
