package core

// GoalDetails is a goal with its derived figures.
type GoalDetails struct {
	Goal
	MonthlyTarget Money `json:"monthlyTarget"`
	Remaining     Money `json:"remaining"`
}

// ReconcileResult reports what a progress recompute did to one goal.
type ReconcileResult struct {
	GoalID      string `json:"goalId"`
	Name        string `json:"name"`
	OldProgress Money  `json:"oldProgress"`
	NewProgress Money  `json:"newProgress"`
	Corrected   bool   `json:"corrected"`
	Error       string `json:"error,omitempty"`
}
