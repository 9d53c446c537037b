// Package policy decides read and write access to tasks with OPA (Open
// Policy Agent). A built-in Rego policy grants access by organization,
// editorship and project membership; operators extend it with .rego files.
package policy

import (
	"encoding/json"
	"time"

	"github.com/josephgoksu/guidedmodules/models"
)

// Action is the access being checked.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Decision represents the outcome of evaluating the policy for one access.
// It is stored in the policy_decisions table for audit.
type Decision struct {
	ID          int64     `json:"id"`
	DecisionID  string    `json:"decisionId"`
	PolicyPath  string    `json:"policyPath"`
	Action      Action    `json:"action"`
	Result      string    `json:"result"`
	Violations  []string  `json:"violations,omitempty"`
	Input       any       `json:"input"`
	TaskID      string    `json:"taskId,omitempty"`
	ActorID     string    `json:"actorId,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Result constants.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// IsAllowed returns true if the decision was "allow".
func (d *Decision) IsAllowed() bool {
	return d.Result == ResultAllow
}

// ViolationsJSON returns the violations as a JSON string for storage.
func (d *Decision) ViolationsJSON() string {
	if len(d.Violations) == 0 {
		return "[]"
	}
	b, err := json.Marshal(d.Violations)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// InputJSON returns the input as a JSON string for storage.
func (d *Decision) InputJSON() string {
	if d.Input == nil {
		return "{}"
	}
	b, err := json.Marshal(d.Input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseViolations parses a JSON string into a slice of violations.
func ParseViolations(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}

// Input is what Rego policies receive as input.
type Input struct {
	Action     Action           `json:"action"`
	Actor      ActorInput       `json:"actor"`
	Task       TaskInput        `json:"task"`
	Membership *MembershipInput `json:"membership"`
}

// ActorInput identifies the caller.
type ActorInput struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// TaskInput carries the task attributes policies may inspect.
type TaskInput struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	OrganizationID string `json:"organization_id"`
	EditorID       string `json:"editor_id"`
	ModuleKey      string `json:"module_key"`
	Deleted        bool   `json:"deleted"`
}

// MembershipInput is the actor's membership in the task's project. It is
// null when the actor is not a member.
type MembershipInput struct {
	Admin bool `json:"admin"`
}

// BuildInput assembles the policy input for an access check.
func BuildInput(action Action, actor models.Actor, task *models.Task, m *models.Membership) *Input {
	in := &Input{
		Action: action,
		Actor:  ActorInput{UserID: actor.UserID, OrganizationID: actor.OrganizationID},
		Task: TaskInput{
			ID:             task.ID,
			ProjectID:      task.ProjectID,
			OrganizationID: task.OrganizationID,
			EditorID:       task.EditorID,
			ModuleKey:      task.ModuleKey,
			Deleted:        task.IsDeleted(),
		},
	}
	if m != nil {
		in.Membership = &MembershipInput{Admin: m.IsAdmin}
	}
	return in
}
