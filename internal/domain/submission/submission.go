// Package submission contains the submission record model, form
// validation, and the per-attempt pipeline states.
package submission

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// ReservedTeamName may only be used by the configured admin principal.
// The name signals authority (the course baseline), not identity.
const ReservedTeamName = "Baseline"

// Metrics is the fixed set of accuracies produced by the scoring endpoint.
// Each value is a fraction in [0,1]. Pointers distinguish a missing value
// from a genuine zero; older records may lack individual fields.
type Metrics struct {
	SuperAccuracy       *float64 `json:"superAccuracy,omitempty"`
	SeenSuperAccuracy   *float64 `json:"seenSuperAccuracy,omitempty"`
	UnseenSuperAccuracy *float64 `json:"unseenSuperAccuracy,omitempty"`
	SubAccuracy         *float64 `json:"subAccuracy,omitempty"`
	SeenSubAccuracy     *float64 `json:"seenSubAccuracy,omitempty"`
	UnseenSubAccuracy   *float64 `json:"unseenSubAccuracy,omitempty"`
}

// Record is a scored submission as held by the record store. Identity is
// the store-generated key; records are immutable from this side.
type Record struct {
	ID             string    `json:"id"`
	TeamName       string    `json:"teamName"`
	ModelName      string    `json:"modelName"`
	Description    string    `json:"description"`
	Email          string    `json:"email"`
	FileURL        string    `json:"fileUrl"`
	SubmissionTime time.Time `json:"submissionTime"`
	Metrics        Metrics   `json:"metrics"`
}

// IsBaseline reports whether the record belongs to the reserved team.
func (r Record) IsBaseline() bool {
	return strings.EqualFold(r.TeamName, ReservedTeamName)
}

// Form carries the user-entered submission fields plus file metadata.
// The file body itself travels separately as a stream.
type Form struct {
	TeamName    string
	ModelName   string
	Description string
	FileName    string
	ContentType string
}

// Validate checks required fields and the CSV type constraint.
// It performs no network calls.
func (f Form) Validate() error {
	switch {
	case strings.TrimSpace(f.TeamName) == "":
		return validationError("team name is required")
	case strings.TrimSpace(f.ModelName) == "":
		return validationError("model name is required")
	case strings.TrimSpace(f.Description) == "":
		return validationError("description is required")
	case strings.TrimSpace(f.FileName) == "":
		return validationError("a CSV file is required")
	}
	if !isCSV(f.FileName, f.ContentType) {
		return validationError("file must be a CSV")
	}
	return nil
}

// CheckTeamName enforces the reserved-name rule before any upload happens.
// The comparison is case-insensitive so the rule cannot be sidestepped by
// casing tricks.
func (f Form) CheckTeamName(email, adminEmail string) error {
	if strings.EqualFold(f.TeamName, ReservedTeamName) && (adminEmail == "" || email != adminEmail) {
		return ErrForbiddenTeamName
	}
	return nil
}

func isCSV(name, contentType string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "text/csv" {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// State tracks a submission attempt through the pipeline.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateUploading  State = "uploading"
	StateScoring    State = "scoring"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Receipt is returned to the caller after a submission attempt.
type Receipt struct {
	ID      string  `json:"id"`
	State   State   `json:"state"`
	Metrics Metrics `json:"metrics"`
}
