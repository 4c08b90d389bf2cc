package harness

// PendingRow is a row left pending when the scenario finished.
type PendingRow struct {
	Batch   int    `json:"batch"`
	Command string `json:"command"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held and every step
	// behaved as declared.
	Pass bool `json:"pass"`

	// Trace holds one line per scheduler event, in order.
	Trace []string `json:"trace"`

	// Executed holds the command line of each executed row, in order.
	Executed []string `json:"executed"`

	// Pending holds the rows still pending, in queue order.
	Pending []PendingRow `json:"pending"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []string{},
		Executed: []string{},
		Pending:  []PendingRow{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
