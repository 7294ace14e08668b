package model

// Action is a mitigation proposed for a congested train.
type Action string

const (
	ActionIncreaseSpeed      Action = "increase_speed"
	ActionReroute            Action = "reroute"
	ActionWait               Action = "wait"
	ActionExpressPriority    Action = "express_priority"
	ActionScheduleAdjustment Action = "schedule_adjustment"
	ActionMonitor            Action = "monitor"
)

// Priority is the urgency of a suggestion.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities by severity: high > medium > low. Unknown labels
// rank below low. Comparing the labels as strings does not give this order.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Suggestion is the mitigation selected for one congested train.
type Suggestion struct {
	TrainID             string   `json:"train_id"`
	Action              Action   `json:"action"`
	Priority            Priority `json:"priority"`
	ExpectedImprovement float64  `json:"expected_improvement"`
	Reason              string   `json:"reason"`
}
