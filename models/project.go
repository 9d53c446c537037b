package models

import "time"

// Project groups tasks under an organization. Its root task is an instance of
// the "project" module.
type Project struct {
	ID             string    `json:"id" validate:"required,entityid"`
	OrganizationID string    `json:"organizationId" validate:"required,max=128"`
	Title          string    `json:"title" validate:"required,min=1,max=255"`
	RootTaskID     string    `json:"rootTaskId,omitempty" validate:"omitempty,entityid"`
	CreatedAt      time.Time `json:"createdAt" validate:"required"`
	UpdatedAt      time.Time `json:"updatedAt" validate:"required"`
}

// Membership grants a user access to a project's tasks.
type Membership struct {
	ProjectID string `json:"projectId" validate:"required,entityid"`
	UserID    string `json:"userId" validate:"required,max=128"`
	IsAdmin   bool   `json:"isAdmin"`
}

// NewProject returns a project with fresh ID and timestamps.
func NewProject(organizationID, title string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:             NewProjectID(),
		OrganizationID: organizationID,
		Title:          title,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Actor is the user on whose behalf an operation runs. Every engine call
// takes one explicitly.
type Actor struct {
	UserID         string `json:"userId" validate:"required,max=128"`
	OrganizationID string `json:"organizationId" validate:"required,max=128"`
}

func (a Actor) String() string {
	return a.UserID + "@" + a.OrganizationID
}
