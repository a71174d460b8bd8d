// Package pipeline implements the Pipeline Orchestrator (C6): it sequences
// intent classification, spec generation, spec review, code rendering,
// archive assembly, and storage into the Project state machine, persisting
// every intermediate artifact and emitting progress events along the way.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
	"github.com/codeready-toolchain/genforge/pkg/events"
	"github.com/codeready-toolchain/genforge/pkg/intent"
	"github.com/codeready-toolchain/genforge/pkg/llm"
	"github.com/codeready-toolchain/genforge/pkg/project"
	"github.com/codeready-toolchain/genforge/pkg/report"
	"github.com/codeready-toolchain/genforge/pkg/review"
	"github.com/codeready-toolchain/genforge/pkg/spec"
	"github.com/codeready-toolchain/genforge/pkg/specagent"
)

var tracer = otel.Tracer("github.com/codeready-toolchain/genforge/pkg/pipeline")

// Stage names, used both for event Stage fields and for log correlation.
const (
	StageSpecGeneration   = "spec_generation"
	StageSpecReview       = "spec_review"
	StageCodeRendering    = "code_rendering"
	StageReportGeneration = "report_generation"
	StageArchive          = "archive_assembly"
)

const retrievalK = 5

// SpecAgent is the subset of specagent.Agent the orchestrator depends on.
type SpecAgent interface {
	Generate(ctx context.Context, startModelID string, req specagent.Request) (specagent.Result, error)
}

// ContextRetriever is the subset of rag.Retriever the orchestrator uses to
// fold uploaded-document context into spec generation. Optional: a nil
// ContextRetriever on Orchestrator simply skips §4.2 entirely.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, userID, query string, k int) (string, error)
}

// Renderer is the external templating collaborator (spec.md §6): pure,
// deterministic spec → file-map conversion.
type Renderer interface {
	Render(ctx context.Context, s spec.Spec) (map[string]string, error)
}

// Archiver is the external archive-assembly collaborator (spec.md §6).
type Archiver interface {
	Assemble(ctx context.Context, projectName string, files map[string]string) (archivePath string, err error)
}

// Storage is the external artifact-storage collaborator (spec.md §6).
type Storage interface {
	Save(ctx context.Context, userID, projectID, srcPath string) (relativePath string, err error)
}

// Orchestrator wires C1–C7's individual components into the stage
// sequence spec.md §4.6 describes.
type Orchestrator struct {
	projects  *project.Repository
	threads   *project.ThreadRepository
	agent     SpecAgent
	retriever ContextRetriever
	renderer  Renderer
	archiver  Archiver
	storage   Storage
	bus       *events.Bus
}

func New(
	projects *project.Repository,
	threads *project.ThreadRepository,
	agent SpecAgent,
	retriever ContextRetriever,
	renderer Renderer,
	archiver Archiver,
	storage Storage,
	bus *events.Bus,
) *Orchestrator {
	return &Orchestrator{
		projects:  projects,
		threads:   threads,
		agent:     agent,
		retriever: retriever,
		renderer:  renderer,
		archiver:  archiver,
		storage:   storage,
		bus:       bus,
	}
}

// Request is a single user turn driving the pipeline.
type Request struct {
	UserID      string
	ProjectID   string // empty ⇒ no existing artifact
	ProjectName string
	Prompt      string
	ModelID     string // empty ⇒ models.DefaultModelID
}

// Run classifies intent and, for GENERATE/REFINE, drives the full stage
// sequence through to awaiting_verification. RETRIEVE short-circuits and
// returns the existing Project unchanged — callers surface its stored
// zip_path directly rather than re-running generation.
func (o *Orchestrator) Run(ctx context.Context, req Request) (project.Project, error) {
	priorMessages, err := o.priorMessages(ctx, req.ProjectID)
	if err != nil {
		return project.Project{}, err
	}

	classified := intent.Classify(req.Prompt, req.ProjectID != "", toIntentMessages(priorMessages))

	if classified == intent.Retrieve {
		return o.projects.Get(ctx, req.ProjectID)
	}

	p, thread, err := o.startOrResume(ctx, req)
	if err != nil {
		return project.Project{}, err
	}

	if _, err := o.threads.AppendMessage(ctx, thread.ID, "user", req.Prompt); err != nil {
		return project.Project{}, fmt.Errorf("record user message: %w", err)
	}

	return o.runStages(ctx, p, req, priorMessages)
}

func (o *Orchestrator) startOrResume(ctx context.Context, req Request) (project.Project, project.Thread, error) {
	if req.ProjectID == "" {
		p, err := o.projects.Create(ctx, req.UserID, req.ProjectName, req.Prompt)
		if err != nil {
			return project.Project{}, project.Thread{}, err
		}
		thread, err := o.threads.Create(ctx, p.ID)
		if err != nil {
			return project.Project{}, project.Thread{}, err
		}
		return p, thread, nil
	}

	p, err := o.projects.Resume(ctx, req.ProjectID, req.Prompt)
	if err != nil {
		return project.Project{}, project.Thread{}, err
	}

	thread, ok, err := o.threads.GetLatestByProject(ctx, p.ID)
	if err != nil {
		return project.Project{}, project.Thread{}, err
	}
	if !ok {
		thread, err = o.threads.Create(ctx, p.ID)
		if err != nil {
			return project.Project{}, project.Thread{}, err
		}
	}
	return p, thread, nil
}

// priorMessages loads the conversation history feeding intent
// classification and spec generation for a REFINE turn. A brand-new
// project (projectID == "") has no history yet.
func (o *Orchestrator) priorMessages(ctx context.Context, projectID string) ([]project.Message, error) {
	if projectID == "" {
		return nil, nil
	}
	thread, ok, err := o.threads.GetLatestByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return o.threads.ListMessages(ctx, thread.ID)
}

func toIntentMessages(msgs []project.Message) []intent.Message {
	out := make([]intent.Message, len(msgs))
	for i, m := range msgs {
		out[i] = intent.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func toLLMMessages(msgs []project.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func (o *Orchestrator) runStages(ctx context.Context, p project.Project, req Request, priorMessages []project.Message) (project.Project, error) {
	if err := o.projects.UpdateStatus(ctx, p.ID, project.StatusGenerating); err != nil {
		return project.Project{}, err
	}

	generated, err := o.generateSpec(ctx, p, req, priorMessages)
	if err != nil {
		o.fail(ctx, p.ID, StageSpecGeneration, err)
		return project.Project{}, err
	}

	validation, err := o.reviewSpec(ctx, p, generated.Spec)
	if err != nil {
		o.fail(ctx, p.ID, StageSpecReview, err)
		return project.Project{}, err
	}
	if !validation.Valid {
		err := apierrors.New(apierrors.KindSpecInvalid, fmt.Sprintf("spec review rejected the spec: %v", validation.Errors))
		o.fail(ctx, p.ID, StageSpecReview, err)
		return project.Project{}, err
	}

	files, err := o.render(ctx, p, generated.Spec)
	if err != nil {
		o.fail(ctx, p.ID, StageCodeRendering, err)
		return project.Project{}, err
	}

	o.attachReport(ctx, p, req, generated, validation, files)

	if err := o.assembleAndStore(ctx, p, generated.Spec, files); err != nil {
		o.fail(ctx, p.ID, StageArchive, err)
		return project.Project{}, err
	}

	if err := o.projects.UpdateStatus(ctx, p.ID, project.StatusAwaitingVerification); err != nil {
		return project.Project{}, err
	}
	return o.projects.Get(ctx, p.ID)
}

func (o *Orchestrator) generateSpec(ctx context.Context, p project.Project, req Request, priorMessages []project.Message) (specagent.Result, error) {
	var span trace.Span
	ctx, span = tracer.Start(ctx, StageSpecGeneration)
	defer span.End()
	o.emit(p.ID, events.EventTypeStageEntered, StageSpecGeneration, "")

	var docContext string
	if o.retriever != nil {
		ctxText, err := o.retriever.RetrieveContext(ctx, req.UserID, req.Prompt, retrievalK)
		if err != nil {
			return specagent.Result{}, fmt.Errorf("retrieve document context: %w", err)
		}
		docContext = ctxText
	}

	result, err := o.agent.Generate(ctx, req.ModelID, specagent.Request{
		Prompt:          req.Prompt,
		DocumentContext: docContext,
		PriorMessages:   toLLMMessages(priorMessages),
	})
	if err != nil {
		return specagent.Result{}, err
	}

	specJSON, err := json.Marshal(result.Spec)
	if err != nil {
		return specagent.Result{}, fmt.Errorf("marshal generated spec: %w", err)
	}
	if err := o.projects.SetSpec(ctx, p.ID, specJSON, result.ModelUsed); err != nil {
		return specagent.Result{}, err
	}

	o.emit(p.ID, events.EventTypeStageComplete, StageSpecGeneration, "")
	return result, nil
}

func (o *Orchestrator) reviewSpec(ctx context.Context, p project.Project, s spec.Spec) (review.Report, error) {
	ctx, span := tracer.Start(ctx, StageSpecReview)
	defer span.End()
	o.emit(p.ID, events.EventTypeStageEntered, StageSpecReview, "")

	validation := review.Review(s)

	validationJSON, err := json.Marshal(validation)
	if err != nil {
		return review.Report{}, fmt.Errorf("marshal validation report: %w", err)
	}
	if err := o.projects.SetValidation(ctx, p.ID, validationJSON); err != nil {
		return review.Report{}, err
	}

	o.emit(p.ID, events.EventTypeStageComplete, StageSpecReview, "")
	return validation, nil
}

// attachReport folds PROJECT_REPORT.md into files before archiving, per
// spec.md §4.6 step 7. Verification is not yet known at generation time
// (it arrives later via the sandbox/repair loop), so the report is
// generated with no verification section — the report collaborator
// itself treats that case as "optional".
func (o *Orchestrator) attachReport(ctx context.Context, p project.Project, req Request, generated specagent.Result, validation review.Report, files map[string]string) {
	_, span := tracer.Start(ctx, StageReportGeneration)
	defer span.End()
	o.emit(p.ID, events.EventTypeStageEntered, StageReportGeneration, "")
	files[report.FileName] = report.Generate(report.Input{
		Prompt:      req.Prompt,
		Spec:        generated.Spec,
		ModelUsed:   generated.ModelUsed,
		Validation:  validation,
		Verified:    false,
		GeneratedAt: time.Now(),
	})
	o.emit(p.ID, events.EventTypeStageComplete, StageReportGeneration, "")
}

func (o *Orchestrator) render(ctx context.Context, p project.Project, s spec.Spec) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, StageCodeRendering)
	defer span.End()
	o.emit(p.ID, events.EventTypeStageEntered, StageCodeRendering, "")

	files, err := o.renderer.Render(ctx, s)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindRenderFailed, "code rendering failed", err)
	}

	o.emit(p.ID, events.EventTypeStageComplete, StageCodeRendering, "")
	return files, nil
}

func (o *Orchestrator) assembleAndStore(ctx context.Context, p project.Project, s spec.Spec, files map[string]string) error {
	ctx, span := tracer.Start(ctx, StageArchive)
	defer span.End()
	o.emit(p.ID, events.EventTypeStageEntered, StageArchive, "")

	archivePath, err := o.archiver.Assemble(ctx, s.ProjectName, files)
	if err != nil {
		return apierrors.Wrap(apierrors.KindRenderFailed, "archive assembly failed", err)
	}

	relPath, err := o.storage.Save(ctx, p.UserID, p.ID, archivePath)
	if err != nil {
		return fmt.Errorf("store archive: %w", err)
	}
	if err := o.projects.SetZipPath(ctx, p.ID, relPath); err != nil {
		return err
	}

	o.emit(p.ID, events.EventTypeStageComplete, StageArchive, "")
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, projectID, stage string, cause error) {
	o.emit(projectID, events.EventTypeError, stage, cause.Error())
	if err := o.projects.UpdateStatus(context.Background(), projectID, project.StatusFailed); err != nil {
		o.emit(projectID, events.EventTypeWarning, stage, fmt.Sprintf("failed to record failed status: %v", err))
	}
}

func (o *Orchestrator) emit(projectID, eventType, stage, message string) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.ProjectChannel(projectID), events.Event{
		Type:      eventType,
		ProjectID: projectID,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now(),
	})
}
