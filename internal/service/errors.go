package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("file not found")
	ErrInvalidIdentifier = errors.New("invalid file id")
	ErrReaderNil         = errors.New("file content is missing")
)

// Workflow names one of the two lifecycle workflows.
type Workflow string

const (
	WorkflowIngest Workflow = "ingest"
	WorkflowRetire Workflow = "retire"
)

// Stage is a state of a workflow's state machine.
type Stage string

const (
	StageValidating         Stage = "Validating"
	StageUploading          Stage = "Uploading"
	StagePersistingMetadata Stage = "PersistingMetadata"
	StageLocating           Stage = "Locating"
	StageDeletingBlob       Stage = "DeletingBlob"
	StageDeletingRecord     Stage = "DeletingRecord"
	StageCommitted          Stage = "Committed"
)

// Outcome is the terminal state a workflow stopped in.
type Outcome string

const (
	OutcomeCommitted          Outcome = "Committed"
	OutcomeRejectedByPolicy   Outcome = "RejectedByPolicy"
	OutcomeInvalidIdentifier  Outcome = "InvalidIdentifier"
	OutcomeUploadFailed       Outcome = "UploadFailed"
	OutcomeMetadataFailed     Outcome = "MetadataFailed"
	OutcomeNotFound           Outcome = "NotFound"
	OutcomeLookupFailed       Outcome = "LookupFailed"
	OutcomeBlobDeleteFailed   Outcome = "BlobDeleteFailed"
	OutcomeRecordDeleteFailed Outcome = "RecordDeleteFailed"
)

// InconsistencyKind names the two states in which the blob store and the
// metadata table disagree after a partial failure.
type InconsistencyKind string

const (
	// OrphanBlob is a stored object with no metadata row, left by a failed insert.
	OrphanBlob InconsistencyKind = "OrphanBlob"
	// GhostRecord is a metadata row whose object is gone, left by a failed row delete.
	GhostRecord InconsistencyKind = "GhostRecord"
)

// InconsistentStateError describes what an operator has to repair.
type InconsistentStateError struct {
	Kind      InconsistencyKind
	Key       string
	PublicURL string
	RecordID  int64
}

func (e *InconsistentStateError) Error() string {
	switch e.Kind {
	case OrphanBlob:
		return fmt.Sprintf("inconsistent state %s: object %q has no metadata row", e.Kind, e.Key)
	case GhostRecord:
		return fmt.Sprintf("inconsistent state %s: record %d points at deleted object %q", e.Kind, e.RecordID, e.Key)
	default:
		return fmt.Sprintf("inconsistent state %s", e.Kind)
	}
}

// WorkflowError is the failure result of Ingest and Retire. Err holds the cause
// (an *admission.Rejection, a remote error, ErrNotFound, ...). Inconsistency is
// set when the failure left the two stores out of step.
type WorkflowError struct {
	Workflow      Workflow
	Outcome       Outcome
	Stage         Stage
	Err           error
	Inconsistency *InconsistentStateError
}

func (e *WorkflowError) Error() string {
	msg := fmt.Sprintf("%s %s at %s: %v", e.Workflow, e.Outcome, e.Stage, e.Err)
	if e.Inconsistency != nil {
		msg += "; " + e.Inconsistency.Error()
	}
	return msg
}

func (e *WorkflowError) Unwrap() []error {
	errs := []error{e.Err}
	if e.Inconsistency != nil {
		errs = append(errs, e.Inconsistency)
	}
	return errs
}

// OutcomeOf returns the workflow outcome carried by err, or "" if err is not a *WorkflowError.
func OutcomeOf(err error) Outcome {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Outcome
	}
	return ""
}
