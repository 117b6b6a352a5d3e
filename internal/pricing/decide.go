package pricing

import (
	"github.com/angelmondragon/ordo-backend/internal/vendors"
)

// DefaultAttemptThreshold is the last attempt number a task may be retried at.
const DefaultAttemptThreshold = 3

// Action is what the updater does with a fetched task.
type Action string

const (
	ActionUpdate          Action = "update"
	ActionRetry           Action = "retry"
	ActionGiveUp          Action = "give_up"
	ActionMarkUnavailable Action = "mark_unavailable"
)

// Decision is the outcome of Decide. NextAttempt is set for ActionRetry.
type Decision struct {
	Action      Action
	NextAttempt int
}

// RetryPolicy decides what happens to a task after a fetch.
type RetryPolicy struct {
	AttemptThreshold int
}

// Decide applies the default policy.
func Decide(outcome vendors.FetchOutcome, attempt int) Decision {
	return RetryPolicy{AttemptThreshold: DefaultAttemptThreshold}.Decide(outcome, attempt)
}

func (p RetryPolicy) Decide(outcome vendors.FetchOutcome, attempt int) Decision {
	switch outcome {
	case vendors.OutcomeSuccess:
		return Decision{Action: ActionUpdate}
	case vendors.OutcomeNotFound:
		return Decision{Action: ActionMarkUnavailable}
	}
	next := attempt + 1
	if next > p.AttemptThreshold {
		return Decision{Action: ActionGiveUp}
	}
	return Decision{Action: ActionRetry, NextAttempt: next}
}
