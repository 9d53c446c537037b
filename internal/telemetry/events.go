package telemetry

import "github.com/josephgoksu/guidedmodules/models"

// Instrumentation event types.
const (
	EventQuestionShow   = "task-question-show"
	EventQuestionAnswer = "task-question-answer"
	EventQuestionChange = "task-question-change"
	EventQuestionSkip   = "task-question-skip"
	EventQuestionKeep   = "task-question-keep"
	EventQuestionClear  = "task-question-clear"
	EventTaskDone       = "task-done"
	EventInteractFirst  = "interact-first"
)

// QuestionEvent maps an answer mutation kind (answer, change, skip, keep,
// clear) to its event type.
func QuestionEvent(kind string) string {
	return "task-question-" + kind
}

// Properties returns the anonymous properties of an instrumentation event.
func Properties(e *models.Event) map[string]any {
	props := map[string]any{}
	if e.ModuleKey != "" {
		props["module_key"] = e.ModuleKey
	}
	if e.QuestionKey != "" {
		props["question_key"] = e.QuestionKey
	}
	if e.Value != nil {
		props["value"] = *e.Value
	}
	return props
}
