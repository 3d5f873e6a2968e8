package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/nndl/courseboard/internal/adapters/authclient"
	"github.com/nndl/courseboard/internal/app"
	"github.com/nndl/courseboard/internal/domain/submission"
)

// multipartMemoryLimit bounds the in-memory portion of form parsing;
// larger files spill to temp storage.
const multipartMemoryLimit = 4 << 20

// Submitter runs the submission pipeline for one attempt.
type Submitter interface {
	Submit(ctx context.Context, in app.SubmitInput) (submission.Receipt, error)
}

// SubmissionsHandler handles submission uploads.
type SubmissionsHandler struct {
	submitter Submitter
	sessions  SessionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(submitter Submitter, sessions SessionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{submitter: submitter, sessions: sessions}
}

type submissionFailure struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	State   submission.State `json:"state"`
}

// HandlePostSubmission handles POST /api/submissions (multipart form:
// teamName, modelName, description, file).
func (h *SubmissionsHandler) HandlePostSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if _, ok := h.sessions.Current(); !ok {
		writeError(w, http.StatusUnauthorized, "not_signed_in", errors.New("sign in before submitting"))
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	in := app.SubmitInput{
		Form: submission.Form{
			TeamName:    r.FormValue("teamName"),
			ModelName:   r.FormValue("modelName"),
			Description: r.FormValue("description"),
		},
	}
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		in.File = file
		in.Form.FileName = header.Filename
		in.Form.ContentType = header.Header.Get("Content-Type")
	}

	receipt, err := h.submitter.Submit(r.Context(), in)
	if err != nil {
		status, code := submissionFailureStatus(err)
		writeJSON(w, status, submissionFailure{
			Code:    code,
			Message: err.Error(),
			State:   receipt.State,
		})
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// submissionFailureStatus maps pipeline errors onto HTTP responses. The
// scoring endpoint's message passes through verbatim so the user sees
// exactly what the server said.
func submissionFailureStatus(err error) (int, string) {
	var scoringErr *submission.ScoringError
	switch {
	case errors.Is(err, submission.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, submission.ErrForbiddenTeamName):
		return http.StatusForbidden, "forbidden_team_name"
	case errors.Is(err, submission.ErrUpload):
		return http.StatusBadGateway, "upload_error"
	case errors.Is(err, authclient.ErrAuthExpired):
		return http.StatusUnauthorized, "auth_expired"
	case errors.Is(err, app.ErrNotSignedIn):
		return http.StatusUnauthorized, "not_signed_in"
	case errors.As(err, &scoringErr):
		return http.StatusBadGateway, "scoring_error"
	}
	return http.StatusInternalServerError, "internal_error"
}
