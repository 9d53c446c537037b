package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TaskState is the lifecycle state of a task. Deletion is soft and reversible.
type TaskState string

const (
	TaskActive  TaskState = "active"
	TaskDeleted TaskState = "deleted"
)

// ID prefixes for persisted entities.
const (
	TaskIDPrefix    = "task-"
	ProjectIDPrefix = "proj-"
)

// Task is one instantiation of a module for an editor within a project.
type Task struct {
	ID             string     `json:"id" validate:"required,entityid"`
	ProjectID      string     `json:"projectId" validate:"required,entityid"`
	OrganizationID string     `json:"organizationId" validate:"required,max=128"`
	EditorID       string     `json:"editorId" validate:"required,max=128"`
	ModuleKey      string     `json:"moduleKey" validate:"required,max=128"`
	ModuleVersion  int        `json:"moduleVersion" validate:"required,min=1"`
	Title          string     `json:"title" validate:"required,max=255"`
	Notes          string     `json:"notes,omitempty"`
	State          TaskState  `json:"state" validate:"required,oneof=active deleted"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" validate:"required"`
	UpdatedAt      time.Time  `json:"updatedAt" validate:"required"`
}

// IsDeleted reports whether the task has been soft-deleted.
func (t *Task) IsDeleted() bool {
	return t.State == TaskDeleted
}

// NewTask returns an active task with fresh ID and timestamps.
func NewTask(projectID, organizationID, editorID, moduleKey string, moduleVersion int, title string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:             NewTaskID(),
		ProjectID:      projectID,
		OrganizationID: organizationID,
		EditorID:       editorID,
		ModuleKey:      moduleKey,
		ModuleVersion:  moduleVersion,
		Title:          title,
		State:          TaskActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewTaskID returns "task-" followed by 8 hex characters.
func NewTaskID() string {
	return TaskIDPrefix + shortHex()
}

// NewProjectID returns "proj-" followed by 8 hex characters.
func NewProjectID() string {
	return ProjectIDPrefix + shortHex()
}

func shortHex() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

var entityIDPattern = regexp.MustCompile(`^(task|proj)-[0-9a-f]{8}$`)

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
		return entityIDPattern.MatchString(fl.Field().String())
	})
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, fmt.Sprintf("Validation failed on field '%s': rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(errorMessages, "; "))
	}
	return nil
}

// ValidateVar validates a single value against a validator tag, e.g. "email".
func ValidateVar(v any, tag string) error {
	return validate.Var(v, tag)
}
