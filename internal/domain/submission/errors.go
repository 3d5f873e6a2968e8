package submission

import (
	"errors"
	"fmt"
)

// Sentinel kinds for submission pipeline errors.
var (
	// ErrValidation covers missing required fields and wrong file types.
	ErrValidation = errors.New("invalid submission")

	// ErrForbiddenTeamName is returned when a non-admin submits under the
	// reserved team name.
	ErrForbiddenTeamName = errors.New(`only authorized users can submit under the team name "Baseline"`)

	// ErrUpload indicates the object storage write failed; no scoring
	// call has been made.
	ErrUpload = errors.New("file upload failed")
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// ScoringError carries a failure from the remote scoring endpoint.
// Message holds the server-provided text when the response body had one.
type ScoringError struct {
	Status  int
	Message string
}

func (e *ScoringError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("scoring failed with status %d", e.Status)
}
