package autofix

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
	"github.com/codeready-toolchain/genforge/pkg/events"
	"github.com/codeready-toolchain/genforge/pkg/project"
	"github.com/codeready-toolchain/genforge/pkg/sandbox"
	"github.com/codeready-toolchain/genforge/pkg/spec"
)

// ArchiveStore is the subset of pkg/storage's Filesystem the Requester
// depends on to locate a project's most recently assembled archive.
type ArchiveStore interface {
	Get(ctx context.Context, userID, projectID string) (path string, found bool, err error)
}

// Requester implements pkg/api's FixRequester: it rebuilds a failed
// project's file set from its stored archive and drives a fresh
// sandbox.Loop run in the background, persisting the outcome when it
// completes. The HTTP handler only waits for the fix to be accepted, not
// for the repair loop to finish — spec.md §6 names this endpoint as a
// trigger, not a synchronous operation.
type Requester struct {
	Projects *project.Repository
	Loop     *sandbox.Loop
	Store    ArchiveStore
	Bus      *events.Bus
}

func NewRequester(projects *project.Repository, loop *sandbox.Loop, store ArchiveStore, bus *events.Bus) *Requester {
	return &Requester{Projects: projects, Loop: loop, Store: store, Bus: bus}
}

func (r *Requester) RequestFix(ctx context.Context, projectID string, req sandbox.AutoFixRequest) error {
	p, err := r.Projects.Get(ctx, projectID)
	if err != nil {
		return err
	}

	var s spec.Spec
	if err := json.Unmarshal(p.SpecJSON, &s); err != nil {
		return fmt.Errorf("decode stored spec: %w", err)
	}

	archivePath, found, err := r.Store.Get(ctx, p.UserID, p.ID)
	if err != nil {
		return fmt.Errorf("locate stored archive: %w", err)
	}
	if !found {
		return apierrors.New(apierrors.KindTerminal, "no stored archive to fix")
	}

	files, err := extractZipFiles(archivePath, s.ProjectName)
	if err != nil {
		return fmt.Errorf("read stored archive: %w", err)
	}

	if err := r.Projects.UpdateStatus(ctx, projectID, project.StatusGenerating); err != nil {
		return err
	}

	// The repair loop runs for up to three deploy/patch cycles against a
	// live container; it outlives the request that triggered it.
	go r.run(context.Background(), p, s, files)
	return nil
}

func (r *Requester) run(ctx context.Context, p project.Project, s spec.Spec, files map[string]string) {
	outcome, err := r.Loop.Run(ctx, s.ProjectName, s, files)
	if err != nil {
		log.Printf("autofix: repair loop failed for project %s: %v", p.ID, err)
		r.finish(ctx, p.ID, project.StatusFailed, sandbox.VerificationReport{
			Passed: false,
			Errors: []string{err.Error()},
		})
		return
	}

	status := project.StatusFailed
	if outcome.Healthy && outcome.Approved {
		status = project.StatusCompleted
	}
	r.finish(ctx, p.ID, status, outcome.FinalReport)
}

func (r *Requester) finish(ctx context.Context, projectID string, status project.Status, report sandbox.VerificationReport) {
	reportJSON, err := json.Marshal(report)
	if err == nil {
		if err := r.Projects.SetVerification(ctx, projectID, reportJSON); err != nil {
			log.Printf("autofix: persist verification for project %s: %v", projectID, err)
		}
	}
	if err := r.Projects.UpdateStatus(ctx, projectID, status); err != nil {
		log.Printf("autofix: update status for project %s: %v", projectID, err)
	}
	r.Bus.Publish(events.ProjectChannel(projectID), events.Event{
		Type:      "fix_complete",
		ProjectID: projectID,
		Stage:     "repair_loop",
		Message:   string(status),
		Timestamp: time.Now(),
	})
}

// extractZipFiles reads a ZIP produced by pkg/archive and returns its
// entries keyed by path relative to rootName/, the inverse of
// pkg/archive.Assembler.
func extractZipFiles(archivePath, rootName string) (map[string]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	prefix := rootName + "/"
	files := make(map[string]string, len(reader.File))
	for _, f := range reader.File {
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		rel := path.Clean(strings.TrimPrefix(f.Name, prefix))
		if rel == "alembic/.gitkeep" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		files[rel] = string(content)
	}
	return files, nil
}
