package domain

import "time"

// Attempt is one player's in-progress run of a quiz, valid for one submission.
type Attempt struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	UserEmail string    `json:"user_email"`
	QuizID    int64     `json:"quiz_id"`
	StartedAt time.Time `json:"started_at"`
}

// OutcomeStatus tracks a submitted attempt through grading.
type OutcomeStatus string

const (
	OutcomeProcessing OutcomeStatus = "processing"
	OutcomeGraded     OutcomeStatus = "graded"
	OutcomeFailed     OutcomeStatus = "failed"
)

// AttemptOutcome is what the player can poll after submitting.
type AttemptOutcome struct {
	AttemptID string        `json:"attempt_id"`
	UserID    int64         `json:"user_id"`
	QuizID    int64         `json:"quiz_id"`
	Status    OutcomeStatus `json:"status"`
	Result    *ScoreResult  `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	// Resubmittable is set when the attempt was restored after a failure.
	Resubmittable bool `json:"resubmittable,omitempty"`
}
