package types

import (
	"errors"
	"fmt"
)

type RejectionError struct {
	Stage   string
	DocID   string
	Reason  string
	Details map[string]interface{}
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected by %s: %s (doc: %s)", e.Stage, e.Reason, e.DocID)
}

func NewRejectionError(stage, docID, reason string) *RejectionError {
	return &RejectionError{
		Stage:   stage,
		DocID:   docID,
		Reason:  reason,
		Details: make(map[string]interface{}),
	}
}

func (e *RejectionError) WithDetail(key string, value interface{}) *RejectionError {
	e.Details[key] = value
	return e
}

func IsRejected(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

// PoisonError marks a queue entry that can never be processed, no matter how
// often it is redelivered.
type PoisonError struct {
	EntryID string
	Reason  string
	Err     error
}

func (e *PoisonError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("poison entry %s: %s: %v", e.EntryID, e.Reason, e.Err)
	}
	return fmt.Sprintf("poison entry %s: %s", e.EntryID, e.Reason)
}

func (e *PoisonError) Unwrap() error {
	return e.Err
}

func NewPoisonError(entryID, reason string, err error) *PoisonError {
	return &PoisonError{EntryID: entryID, Reason: reason, Err: err}
}

func IsPoison(err error) bool {
	var p *PoisonError
	return errors.As(err, &p)
}
