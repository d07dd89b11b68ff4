package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/profiler/internal/domain/catalog"
	"github.com/okian/profiler/internal/domain/decision"
	"github.com/okian/profiler/internal/domain/quiz"
)

// QuizDependencies defines the interface for quiz operations.
type QuizDependencies interface {
	Surface() quiz.Surface
	Decide(ctx context.Context, answers quiz.Answers) (decision.Result, error)
	ShareText(outcome string) (string, error)
}

// decisionResponse is the body of POST /quiz.
type decisionResponse struct {
	SubmissionID   string        `json:"submission_id"`
	Outcome        string        `json:"outcome"`
	BaseOutcome    string        `json:"base_outcome"`
	Confidence     *float64      `json:"confidence,omitempty"`
	RarityOverride bool          `json:"rarity_override"`
	RareVariant    bool          `json:"rare_variant"`
	ModelVersion   uint64        `json:"model_version"`
	Image          string        `json:"image"`
	Type           string        `json:"type"`
	Banners        []string      `json:"banners"`
	Share          string        `json:"share"`
	Entry          catalog.Entry `json:"entry"`
}

// QuizHandler serves the quiz surface and runs decisions.
type QuizHandler struct {
	deps QuizDependencies
}

// NewQuizHandler creates a new quiz handler.
func NewQuizHandler(deps QuizDependencies) *QuizHandler {
	return &QuizHandler{deps: deps}
}

// HandleGetQuiz handles GET /quiz requests.
func (h *QuizHandler) HandleGetQuiz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Surface())
}

// HandlePostQuiz handles POST /quiz requests. With ?strict=true unknown
// answer values are rejected instead of being ignored by the encoder.
func (h *QuizHandler) HandlePostQuiz(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_quiz"
	var answers quiz.Answers
	if err := decodeJSON(w, r, &answers); err != nil {
		writeFailure(w, op, wrapKind(op, ErrBadRequest, err))
		return
	}
	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		if err := answers.Normalize().Validate(); err != nil {
			writeFailure(w, op, wrapKind(op, ErrBadRequest, err))
			return
		}
	}

	res, err := h.deps.Decide(r.Context(), answers)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	share, err := h.deps.ShareText(res.Outcome)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	banners := res.Banners()
	if banners == nil {
		banners = []string{}
	}
	writeJSON(w, http.StatusOK, decisionResponse{
		SubmissionID:   res.SubmissionID,
		Outcome:        res.Outcome,
		BaseOutcome:    res.BaseOutcome,
		Confidence:     res.Confidence,
		RarityOverride: res.RarityOverride,
		RareVariant:    res.RareVariant,
		ModelVersion:   res.ModelVersion,
		Image:          res.Image(),
		Type:           res.Entry.DisplayType(),
		Banners:        banners,
		Share:          share,
		Entry:          res.Entry,
	})
}
