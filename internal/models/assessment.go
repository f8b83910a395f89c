package models

import (
	"time"
)

// AssessmentStatus represents the current state of an assessment
type AssessmentStatus string

const (
	StatusDraft      AssessmentStatus = "draft"       // Created, no responses yet
	StatusInProgress AssessmentStatus = "in_progress" // Responses saved at least once
	StatusCompleted  AssessmentStatus = "completed"   // Submitted and scored
)

// IsTerminal returns true if the status is a terminal state
func (s AssessmentStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// Valid reports whether s is a known status
func (s AssessmentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Assessment is one team's run through a framework
type Assessment struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id,omitempty"`
	TeamName       string           `json:"team_name"`
	FrameworkID    string           `json:"framework_id"`
	Status         AssessmentStatus `json:"status"`
	OverallScore   *float64         `json:"overall_score,omitempty"`
	MaturityLevel  *int             `json:"maturity_level,omitempty"`
	CreatedBy      string           `json:"created_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	DomainScores   []DomainScore    `json:"domain_scores,omitempty"`
}

// Response is one answer to one question
type Response struct {
	QuestionID string    `json:"question_id"`
	Score      int       `json:"score"`
	Notes      string    `json:"notes,omitempty"`
	Evidence   []string  `json:"evidence,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// ListFilters contains filters for listing assessments
type ListFilters struct {
	OrganizationID string
	FrameworkID    string
	Status         AssessmentStatus
	Limit          int
	Offset         int
}

// CreateAssessmentRequest represents a request to start an assessment
type CreateAssessmentRequest struct {
	TeamName       string `json:"team_name"`
	FrameworkID    string `json:"framework_id"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// UpdateAssessmentRequest represents a request to rename an assessment
type UpdateAssessmentRequest struct {
	TeamName string `json:"team_name"`
}

// SaveResponsesRequest represents a batch of responses to upsert
type SaveResponsesRequest struct {
	Responses []Response `json:"responses"`
}

// Progress is the answered/total ratio of an assessment
type Progress struct {
	Answered int     `json:"answered"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
}

// AnalyticsSummary aggregates assessments of an organization
type AnalyticsSummary struct {
	TotalAssessments     int         `json:"total_assessments"`
	CompletedAssessments int         `json:"completed_assessments"`
	InProgress           int         `json:"in_progress_assessments"`
	AverageScore         float64     `json:"average_score"`
	AverageMaturityLevel float64     `json:"average_maturity_level"`
	LevelDistribution    map[int]int `json:"level_distribution"`
}
