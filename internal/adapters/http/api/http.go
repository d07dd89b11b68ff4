// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/profiler/internal/app"
	"github.com/okian/profiler/internal/domain/catalog"
	"github.com/okian/profiler/internal/domain/decision"
	"github.com/okian/profiler/internal/domain/quiz"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Surface() quiz.Surface
	Decide(ctx context.Context, answers quiz.Answers) (decision.Result, error)
	RecordFeedback(ctx context.Context, req service.FeedbackRequest) (service.FeedbackReceipt, error)
	Lookup(name string) (catalog.Entry, error)
	HallOfFame(ctx context.Context, limit int) ([]service.FameEntry, error)
	Learning(ctx context.Context) (service.Learning, error)
	ShareText(outcome string) (string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	quizHandler     *QuizHandler
	feedbackHandler *FeedbackHandler
	catalogHandler  *CatalogHandler
	fameHandler     *HallOfFameHandler
	learningHandler *LearningHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps
// GET /hall-of-fame?limit.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		quizHandler:     NewQuizHandler(deps),
		feedbackHandler: NewFeedbackHandler(deps),
		catalogHandler:  NewCatalogHandler(deps),
		fameHandler:     NewHallOfFameHandler(deps, maxLimit),
		learningHandler: NewLearningHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /quiz", MetricsMiddleware(s.quizHandler.HandleGetQuiz, "quiz"))
	mux.HandleFunc("POST /quiz", MetricsMiddleware(s.quizHandler.HandlePostQuiz, "quiz"))
	mux.HandleFunc("POST /feedback", MetricsMiddleware(s.feedbackHandler.HandlePostFeedback, "feedback"))
	mux.HandleFunc("GET /catalog/{name}", MetricsMiddleware(s.catalogHandler.HandleGetEntry, "catalog"))
	mux.HandleFunc("GET /hall-of-fame", MetricsMiddleware(s.fameHandler.HandleGetHallOfFame, "hall_of_fame"))
	mux.HandleFunc("GET /learning", MetricsMiddleware(s.learningHandler.HandleGetLearning, "learning"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
