package domain

import (
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Outcome tells the queue runtime what to do with a failed message.
type Outcome int

const (
	// OutcomeRetryable leaves the message for redelivery until MaxReceiveCount.
	OutcomeRetryable Outcome = iota
	// OutcomeTerminal routes the message straight to the dead letter sink.
	OutcomeTerminal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTerminal:
		return "terminal"
	default:
		return "retryable"
	}
}

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal marks err as not worth retrying.
func Terminal(err error) error {
	if err == nil || Classify(err) == OutcomeTerminal {
		return err
	}
	return &terminalError{err: err}
}

// Classify maps a handler error to an Outcome. An error joined from several
// causes is terminal only when every cause is terminal.
func Classify(err error) Outcome {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := e.(*terminalError); ok {
			return OutcomeTerminal
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			causes := joined.Unwrap()
			if len(causes) == 0 {
				return OutcomeRetryable
			}
			for _, cause := range causes {
				if Classify(cause) != OutcomeTerminal {
					return OutcomeRetryable
				}
			}
			return OutcomeTerminal
		}
	}
	return OutcomeRetryable
}

// Failure names one failed message of a batch.
type Failure struct {
	MessageID snowflake.ID
	Outcome   Outcome
	Err       error
}

// BatchReport lists the failed messages of a received batch. Every message
// of the batch not named here is acknowledged.
type BatchReport struct {
	Failures []Failure
}

func (r *BatchReport) Fail(id snowflake.ID, err error) {
	r.Failures = append(r.Failures, Failure{MessageID: id, Outcome: Classify(err), Err: err})
}

// FailedIDs returns the ids to redeliver or quarantine.
func (r BatchReport) FailedIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.MessageID)
	}
	return ids
}

// CompletionSummary counts what Complete did with a batch.
type CompletionSummary struct {
	Acked        int
	Retried      int
	DeadLettered int
	LeaseLost    int
}
