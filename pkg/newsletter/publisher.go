package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Step names one stage of a publish workflow.
type Step string

const (
	StepUploadDocument Step = "upload_document"
	StepUploadCover    Step = "upload_cover"
	StepGenerateCover  Step = "generate_cover"
	StepPersist        Step = "persist"
	StepCleanup        Step = "cleanup"
)

// Fatal reports whether a failure of the step aborts the workflow.
func (s Step) Fatal() bool {
	return s == StepUploadDocument || s == StepPersist
}

// Outcome is the result of a single step.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepOutcome records what happened in one step.
type StepOutcome struct {
	Step    Step    `json:"step"`
	Outcome Outcome `json:"outcome"`
	Fatal   bool    `json:"fatal"`
	Err     error   `json:"-"`
	Message string  `json:"message,omitempty"`
}

// StepObserver is called after every step, e.g. to feed metrics.
type StepObserver func(ctx context.Context, outcome StepOutcome)

// FileInput is an uploaded file handed to the Publisher.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// PublishInput describes a new newsletter and its files.
type PublishInput struct {
	Title         string
	Description   *string
	Language      Language
	PublishedDate string
	IsActive      *bool

	Document FileInput
	Cover    *FileInput
}

// ReviseInput describes changes to an existing newsletter.
type ReviseInput struct {
	Patch    Patch
	Document *FileInput
	Cover    *FileInput

	// RegenerateCover renders a fresh default cover even when one exists.
	RegenerateCover bool
	// RemoveReplaced deletes the assets a new document or cover replaced.
	RemoveReplaced bool
}

// PublishResult is the persisted record plus the outcome of every step.
type PublishResult struct {
	Newsletter *Newsletter   `json:"newsletter"`
	Steps      []StepOutcome `json:"steps"`
}

// Warnings returns the non-fatal steps that failed.
func (r *PublishResult) Warnings() []StepOutcome {
	var warnings []StepOutcome
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed && !s.Fatal {
			warnings = append(warnings, s)
		}
	}
	return warnings
}

// Publisher orchestrates asset uploads, default cover generation and
// persistence for create and update workflows.
type Publisher struct {
	service   Service
	renderer  CoverRenderer
	logger    *slog.Logger
	observers []StepObserver
}

// PublisherOption configures a Publisher
type PublisherOption func(*Publisher)

// WithCoverRenderer enables default cover generation
func WithCoverRenderer(r CoverRenderer) PublisherOption {
	return func(p *Publisher) {
		p.renderer = r
	}
}

// WithPublisherLogger sets the structured logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithStepObserver registers a callback run after every step
func WithStepObserver(o StepObserver) PublisherOption {
	return func(p *Publisher) {
		p.observers = append(p.observers, o)
	}
}

// NewPublisher creates a Publisher on top of svc
func NewPublisher(svc Service, opts ...PublisherOption) (*Publisher, error) {
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}
	p := &Publisher{service: svc}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// run tracks the steps of one workflow invocation
type run struct {
	p        *Publisher
	ctx      context.Context
	logger   *slog.Logger
	steps    []StepOutcome
	uploaded []*Asset
}

func (p *Publisher) newRun(ctx context.Context, op string) *run {
	return &run{
		p:      p,
		ctx:    ctx,
		logger: p.logger.With("op", op, "run_id", uuid.NewString()),
	}
}

func (r *run) record(step Step, outcome Outcome, err error) {
	o := StepOutcome{Step: step, Outcome: outcome, Fatal: step.Fatal(), Err: err}
	if err != nil {
		o.Message = err.Error()
	}
	r.steps = append(r.steps, o)

	switch {
	case err != nil && o.Fatal:
		r.logger.Error("Publish step failed", "step", step, "error", err)
	case err != nil:
		r.logger.Warn("Publish step failed, continuing", "step", step, "error", err)
	default:
		r.logger.Debug("Publish step finished", "step", step, "outcome", outcome)
	}

	for _, observe := range r.p.observers {
		observe(r.ctx, o)
	}
}

func (r *run) result(n *Newsletter) *PublishResult {
	return &PublishResult{Newsletter: n, Steps: r.steps}
}

func (r *run) upload(step Step, class AssetClass, f FileInput) (*Asset, error) {
	asset, err := r.p.service.UploadAsset(r.ctx, class, f.Data, f.Name, f.ContentType)
	if err != nil {
		r.record(step, OutcomeFailed, err)
		return nil, err
	}
	r.uploaded = append(r.uploaded, asset)
	r.record(step, OutcomeOK, nil)
	return asset, nil
}

// generateCover renders and uploads a default cover. It never fails the run.
func (r *run) generateCover(title string, lang Language) *Asset {
	if r.p.renderer == nil {
		r.record(StepGenerateCover, OutcomeSkipped, nil)
		return nil
	}
	data, err := r.p.renderer.Render(title, lang)
	if err != nil {
		r.record(StepGenerateCover, OutcomeFailed, fmt.Errorf("render cover: %w", err))
		return nil
	}
	asset, _ := r.upload(StepGenerateCover, AssetCover, FileInput{
		Name:        "default-cover.jpg",
		ContentType: "image/jpeg",
		Data:        data,
	})
	return asset
}

// compensate removes the assets uploaded in this run after a failed persist.
func (r *run) compensate() {
	if len(r.uploaded) == 0 {
		return
	}
	var failed []string
	for _, a := range r.uploaded {
		if err := r.p.service.DeleteAsset(r.ctx, a.Class, a.Key); err != nil {
			failed = append(failed, a.Key)
		}
	}
	if len(failed) > 0 {
		r.record(StepCleanup, OutcomeFailed, fmt.Errorf("could not remove uploaded assets: %s", strings.Join(failed, ", ")))
		return
	}
	r.record(StepCleanup, OutcomeOK, nil)
}

func validateFile(field string, f *FileInput) error {
	if f == nil || len(f.Data) == 0 {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: field, Message: "file name is required"}
	}
	return nil
}

// Publish uploads the document, attaches a supplied or generated cover and
// creates the record. Only document upload and persistence are fatal.
func (p *Publisher) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	req := CreateRequest{
		Title:         in.Title,
		Description:   in.Description,
		FileURL:       "pending",
		Language:      in.Language,
		PublishedDate: in.PublishedDate,
		IsActive:      in.IsActive,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := validateFile("file", &in.Document); err != nil {
		return nil, err
	}
	if in.Cover != nil {
		if err := validateFile("cover", in.Cover); err != nil {
			return nil, err
		}
	}

	r := p.newRun(ctx, "publish")

	doc, err := r.upload(StepUploadDocument, AssetDocument, in.Document)
	if err != nil {
		return r.result(nil), &StepError{Step: StepUploadDocument, Err: err}
	}
	req.FileURL = doc.PublicURL
	req.FileSize = Ptr(doc.Size)

	var cover *Asset
	if in.Cover != nil {
		cover, _ = r.upload(StepUploadCover, AssetCover, *in.Cover)
	} else {
		cover = r.generateCover(strings.TrimSpace(in.Title), in.Language)
	}
	if cover != nil {
		req.CoverImageURL = Ptr(cover.PublicURL)
	}

	n, err := p.service.Create(ctx, req)
	if err != nil {
		r.record(StepPersist, OutcomeFailed, err)
		r.compensate()
		return r.result(nil), &StepError{Step: StepPersist, Err: err}
	}
	r.record(StepPersist, OutcomeOK, nil)

	r.logger.Info("Newsletter published", "id", n.ID, "warnings", len(r.result(n).Warnings()))
	return r.result(n), nil
}

// Revise applies a patch, optionally replacing the document and cover. A
// default cover is generated when neither a cover file nor a cover URL is
// supplied and the record has none, or when RegenerateCover is set.
func (p *Publisher) Revise(ctx context.Context, id int64, in ReviseInput) (*PublishResult, error) {
	if id < 1 {
		return nil, &ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	if err := in.Patch.Validate(); err != nil {
		return nil, err
	}
	if in.Document != nil {
		if err := validateFile("file", in.Document); err != nil {
			return nil, err
		}
	}
	if in.Cover != nil {
		if err := validateFile("cover", in.Cover); err != nil {
			return nil, err
		}
	}

	existing, err := p.service.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r := p.newRun(ctx, "revise")
	patch := in.Patch

	if in.Document != nil {
		doc, err := r.upload(StepUploadDocument, AssetDocument, *in.Document)
		if err != nil {
			return r.result(nil), &StepError{Step: StepUploadDocument, Err: err}
		}
		patch.FileURL = Ptr(doc.PublicURL)
		patch.FileSize = Ptr(doc.Size)
	}

	var cover *Asset
	switch {
	case in.Cover != nil:
		cover, _ = r.upload(StepUploadCover, AssetCover, *in.Cover)
	case patch.CoverImageURL != nil:
		// caller chose the cover explicitly
	case in.RegenerateCover || existing.CoverImageURL == nil || *existing.CoverImageURL == "":
		title, lang := existing.Title, existing.Language
		if patch.Title != nil {
			title = strings.TrimSpace(*patch.Title)
		}
		if patch.Language != nil {
			lang = *patch.Language
		}
		cover = r.generateCover(title, lang)
	}
	if cover != nil {
		patch.CoverImageURL = Ptr(cover.PublicURL)
	}

	n, err := p.service.Update(ctx, id, patch)
	if err != nil {
		r.record(StepPersist, OutcomeFailed, err)
		r.compensate()
		return r.result(nil), &StepError{Step: StepPersist, Err: err}
	}
	r.record(StepPersist, OutcomeOK, nil)

	if in.RemoveReplaced {
		r.removeReplaced(existing, n)
	}

	return r.result(n), nil
}

// removeReplaced deletes assets the old record referenced that the new one no longer does.
func (r *run) removeReplaced(before, after *Newsletter) {
	type ref struct {
		class AssetClass
		old   string
		cur   string
	}
	refs := []ref{{class: AssetDocument, old: before.FileURL, cur: after.FileURL}}
	if before.CoverImageURL != nil {
		cur := ""
		if after.CoverImageURL != nil {
			cur = *after.CoverImageURL
		}
		refs = append(refs, ref{class: AssetCover, old: *before.CoverImageURL, cur: cur})
	}

	attempted := false
	var failed []string
	for _, rf := range refs {
		if rf.old == "" || rf.old == rf.cur {
			continue
		}
		key, ok := r.p.service.KeyFromURL(rf.class, rf.old)
		if !ok {
			r.logger.Warn("Replaced asset URL is not managed by this service", "class", rf.class, "url", rf.old)
			continue
		}
		attempted = true
		if err := r.p.service.DeleteAsset(r.ctx, rf.class, key); err != nil {
			failed = append(failed, key)
		}
	}

	switch {
	case !attempted:
		r.record(StepCleanup, OutcomeSkipped, nil)
	case len(failed) > 0:
		r.record(StepCleanup, OutcomeFailed, fmt.Errorf("could not remove replaced assets: %s", strings.Join(failed, ", ")))
	default:
		r.record(StepCleanup, OutcomeOK, nil)
	}
}

// Withdraw deletes a record and, with purgeAssets, its document and cover.
// Asset removal is best effort.
func (p *Publisher) Withdraw(ctx context.Context, id int64, purgeAssets bool) (*PublishResult, error) {
	var existing *Newsletter
	if purgeAssets {
		n, err := p.service.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		existing = n
	}

	if _, err := p.service.Delete(ctx, id); err != nil {
		return nil, err
	}

	r := p.newRun(ctx, "withdraw")
	if existing != nil {
		r.removeReplaced(existing, &Newsletter{})
	}
	return r.result(existing), nil
}
