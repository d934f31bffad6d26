// Package policy evaluates Rego guardrails against stage approvals.
// Operators drop .rego files into the policies directory; any message from a
// deny rule blocks the approval.
package policy

import "time"

// Decision results.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// ApprovalInput is what policies see as `input` when a stage is approved.
type ApprovalInput struct {
	TaskID        string `json:"task_id"`
	Stage         string `json:"stage"`
	Output        string `json:"output"`
	RevisionCount int    `json:"revision_count"`
	Problem       string `json:"problem"`
}

// Decision is the outcome of evaluating the loaded policies.
type Decision struct {
	DecisionID  string    `json:"decisionId"`
	PolicyPath  string    `json:"policyPath"`
	Result      string    `json:"result"`
	Violations  []string  `json:"violations,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// IsAllowed reports whether no deny rule fired.
func (d *Decision) IsAllowed() bool {
	return d.Result == ResultAllow
}
