// Package model contains messages passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Retrain reasons.
const (
	ReasonFeedback = "feedback"
	ReasonStartup  = "startup"
	ReasonManual   = "manual"
)

// RetrainJob asks a worker to rebuild the predictor from the feedback sink.
// Jobs carry no payload: any job retrains from the full current history, so
// one job covers every request queued before it ran.
type RetrainJob struct {
	ID          string
	Reason      string
	RequestedAt time.Time
}

// NewRetrainJob stamps a job for reason.
func NewRetrainJob(reason string) RetrainJob {
	return RetrainJob{ID: uuid.NewString(), Reason: reason, RequestedAt: time.Now()}
}
