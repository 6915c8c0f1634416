package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fileshare/internal/admission"
	"fileshare/internal/model"
	"fileshare/internal/naming"
	"fileshare/internal/repository"
	"fileshare/internal/storage"
)

var tracer = otel.Tracer("fileshare/internal/service")

// IngestRequest is one upload as received from the HTTP boundary.
type IngestRequest struct {
	// Token is the anti-forgery token submitted with the form.
	Token string
	// SessionToken is the token held by the caller's session.
	SessionToken string
	Filename     string
	Size         int64
	// ContentType is the MIME type detected from the bytes, not the client's claim.
	ContentType string
	Content     io.Reader
}

// RetireRequest asks for one file to be removed. ID is the raw identifier as submitted.
type RetireRequest struct {
	Token        string
	SessionToken string
	ID           string
}

// FileService defines the file lifecycle use cases.
type FileService interface {
	// Ingest uploads the blob, then inserts its metadata row.
	// A failed insert leaves an orphan blob unless compensation is enabled and succeeds.
	Ingest(ctx context.Context, req IngestRequest) (*model.FileRecord, error)
	// Retire deletes the blob, then the metadata row, and returns the removed record.
	// A failed blob delete keeps the row; a failed row delete leaves a ghost record.
	Retire(ctx context.Context, req RetireRequest) (*model.FileRecord, error)
	// List returns all records, newest first.
	List(ctx context.Context) ([]model.FileRecord, error)
	// Get returns one record by its raw identifier.
	Get(ctx context.Context, id string) (*model.FileRecord, error)
}

// Options tune a fileService. Zero values are usable.
type Options struct {
	// CompensateOrphans makes Ingest try once to delete the blob after a failed insert.
	CompensateOrphans bool
	Now               func() time.Time
	Logger            *slog.Logger
	Metrics           *Metrics
}

type fileService struct {
	store    storage.Storage
	repo     repository.FileRepository
	policy   *admission.Policy
	resolver *naming.Resolver
	opts     Options
	log      *slog.Logger
}

// NewFileService constructs a new FileService.
func NewFileService(store storage.Storage, repo repository.FileRepository, policy *admission.Policy, resolver *naming.Resolver, opts Options) FileService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if resolver == nil {
		resolver = &naming.Resolver{}
	}
	return &fileService{
		store:    store,
		repo:     repo,
		policy:   policy,
		resolver: resolver,
		opts:     opts,
		log:      log.With(slog.String("component", "file_service")),
	}
}

// ParseID accepts a positive base-10 integer, surrounding spaces allowed.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidIdentifier
	}
	return id, nil
}

func (s *fileService) Ingest(ctx context.Context, req IngestRequest) (rec *model.FileRecord, err error) {
	ctx, span := tracer.Start(ctx, "FileService.Ingest", trace.WithAttributes(
		attribute.Int64("file.size", req.Size),
		attribute.String("file.content_type", req.ContentType),
	))
	defer func() { s.finish(ctx, span, WorkflowIngest, err) }()

	if err := s.policy.Admit(req.Token, req.SessionToken, req.Size, req.ContentType); err != nil {
		return nil, s.fail(WorkflowIngest, OutcomeRejectedByPolicy, StageValidating, err, nil)
	}
	if req.Content == nil {
		return nil, s.fail(WorkflowIngest, OutcomeRejectedByPolicy, StageValidating, ErrReaderNil, nil)
	}

	key := s.resolver.Resolve(req.Filename)
	span.SetAttributes(attribute.String("file.key", key))

	if err := s.store.Upload(ctx, key, req.Content, req.Size, req.ContentType); err != nil {
		return nil, s.fail(WorkflowIngest, OutcomeUploadFailed, StageUploading, err, nil)
	}

	publicURL := s.store.PublicURL(key)
	stored, err := s.repo.Insert(ctx, &model.FileRecord{
		DisplayName: naming.DisplayName(req.Filename),
		FileSize:    req.Size,
		PublicURL:   publicURL,
		UploadedAt:  s.opts.Now().UTC(),
	})
	if err != nil {
		var orphan *InconsistentStateError
		if !s.compensate(ctx, key) {
			orphan = &InconsistentStateError{Kind: OrphanBlob, Key: key, PublicURL: publicURL}
		}
		return nil, s.fail(WorkflowIngest, OutcomeMetadataFailed, StagePersistingMetadata, err, orphan)
	}

	s.log.InfoContext(ctx, "file ingested",
		slog.Int64("id", stored.ID),
		slog.String("key", key),
		slog.Int64("size", stored.FileSize),
	)
	return stored, nil
}

// compensate makes one best-effort attempt to delete a blob whose row was never
// written. It reports whether the blob is known to be gone.
func (s *fileService) compensate(ctx context.Context, key string) bool {
	if !s.opts.CompensateOrphans {
		return false
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.ErrorContext(ctx, "orphan compensation failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	s.log.WarnContext(ctx, "orphan blob removed after metadata failure", slog.String("key", key))
	return true
}

func (s *fileService) Retire(ctx context.Context, req RetireRequest) (rec *model.FileRecord, err error) {
	ctx, span := tracer.Start(ctx, "FileService.Retire")
	defer func() { s.finish(ctx, span, WorkflowRetire, err) }()

	if err := s.policy.CheckIntegrity(req.Token, req.SessionToken); err != nil {
		return nil, s.fail(WorkflowRetire, OutcomeRejectedByPolicy, StageValidating, err, nil)
	}
	id, err := ParseID(req.ID)
	if err != nil {
		return nil, s.fail(WorkflowRetire, OutcomeInvalidIdentifier, StageValidating, err, nil)
	}
	span.SetAttributes(attribute.Int64("file.id", id))

	found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.fail(WorkflowRetire, OutcomeNotFound, StageLocating, ErrNotFound, nil)
		}
		return nil, s.fail(WorkflowRetire, OutcomeLookupFailed, StageLocating, err, nil)
	}

	key, err := naming.KeyFromPublicURL(found.PublicURL)
	if err != nil {
		return nil, s.fail(WorkflowRetire, OutcomeBlobDeleteFailed, StageDeletingBlob, err, nil)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return nil, s.fail(WorkflowRetire, OutcomeBlobDeleteFailed, StageDeletingBlob, err, nil)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		ghost := &InconsistentStateError{Kind: GhostRecord, Key: key, PublicURL: found.PublicURL, RecordID: id}
		return nil, s.fail(WorkflowRetire, OutcomeRecordDeleteFailed, StageDeletingRecord, err, ghost)
	}

	s.log.InfoContext(ctx, "file retired", slog.Int64("id", id), slog.String("key", key))
	return found, nil
}

func (s *fileService) List(ctx context.Context) ([]model.FileRecord, error) {
	files, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func (s *fileService) Get(ctx context.Context, raw string) (*model.FileRecord, error) {
	id, err := ParseID(raw)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *fileService) fail(w Workflow, o Outcome, st Stage, cause error, inc *InconsistentStateError) error {
	return &WorkflowError{Workflow: w, Outcome: o, Stage: st, Err: cause, Inconsistency: inc}
}

// finish records the outcome on the span, the metrics and the log.
func (s *fileService) finish(ctx context.Context, span trace.Span, w Workflow, err error) {
	defer span.End()

	outcome := OutcomeCommitted
	var we *WorkflowError
	if errors.As(err, &we) {
		outcome = we.Outcome
	}
	span.SetAttributes(attribute.String("workflow.outcome", string(outcome)))
	s.opts.Metrics.observe(w, outcome)

	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(outcome))

	attrs := []any{
		slog.String("workflow", string(w)),
		slog.String("outcome", string(outcome)),
		slog.String("error", err.Error()),
	}
	if we != nil {
		attrs = append(attrs, slog.String("stage", string(we.Stage)))
	}
	if we != nil && we.Inconsistency != nil {
		inc := we.Inconsistency
		s.opts.Metrics.inconsistent(inc.Kind)
		attrs = append(attrs,
			slog.String("inconsistency", string(inc.Kind)),
			slog.String("key", inc.Key),
			slog.String("public_url", inc.PublicURL),
			slog.Int64("record_id", inc.RecordID),
		)
		s.log.ErrorContext(ctx, "stores left inconsistent, operator action required", attrs...)
		return
	}
	s.log.WarnContext(ctx, "workflow failed", attrs...)
}
