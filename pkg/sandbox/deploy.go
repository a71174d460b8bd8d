package sandbox

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	containerPort     = "8000/tcp"
	healthCheckPath   = "/health"
	healthPollEvery   = 2 * time.Second
	healthDeadline    = 90 * time.Second
	containerDeadline = 30 * time.Second
)

// Deployment is one extracted-and-running sandbox attempt. ProjectDir
// holds the scratch directory the archive was extracted into; it is
// removed on Teardown.
type Deployment struct {
	container  testcontainers.Container
	ProjectDir string
	BaseURL    string
}

// Deployer brings up a generated project's archive in an ephemeral
// container, per spec.md §4.7's Deploy step: extract → bind a
// non-conflicting port → unique project label → health poll.
type Deployer struct {
	ScratchRoot string
}

func NewDeployer(scratchRoot string) *Deployer {
	return &Deployer{ScratchRoot: scratchRoot}
}

// Deploy extracts archivePath into a fresh scratch directory under
// d.ScratchRoot, builds its Dockerfile, and starts the resulting
// container labelled verify-{short-uuid}.
func (d *Deployer) Deploy(ctx context.Context, archivePath string) (*Deployment, error) {
	label := "verify-" + newUUID()[:8]
	scratchDir := filepath.Join(d.ScratchRoot, label)
	if err := extractArchive(archivePath, scratchDir); err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	buildCtx := projectRoot(scratchDir)

	startCtx, cancel := context.WithTimeout(ctx, containerDeadline)
	defer cancel()

	container, err := testcontainers.GenericContainer(startCtx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			FromDockerfile: testcontainers.FromDockerfile{
				Context:    buildCtx,
				Dockerfile: "Dockerfile",
			},
			ExposedPorts: []string{containerPort},
			Labels:       map[string]string{"genforge.verify": label},
			WaitingFor:   wait.ForListeningPort(containerPort).WithStartupTimeout(containerDeadline),
		},
		Started: true,
	})
	if err != nil {
		_ = os.RemoveAll(scratchDir)
		return nil, fmt.Errorf("start sandbox container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		_ = os.RemoveAll(scratchDir)
		return nil, fmt.Errorf("resolve container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, containerPort)
	if err != nil {
		_ = container.Terminate(ctx)
		_ = os.RemoveAll(scratchDir)
		return nil, fmt.Errorf("resolve mapped port: %w", err)
	}

	return &Deployment{
		container:  container,
		ProjectDir: scratchDir,
		BaseURL:    fmt.Sprintf("http://%s:%s", host, mapped.Port()),
	}, nil
}

// WaitHealthy polls GET {BaseURL}/health every 2s until it returns 200 or
// the 90s deadline elapses.
func (dep *Deployment) WaitHealthy(ctx context.Context) bool {
	deadline := time.Now().Add(healthDeadline)
	client := &http.Client{Timeout: 3 * time.Second}

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, dep.BaseURL+healthCheckPath, nil)
		if err == nil {
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return true
				}
			}
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(healthPollEvery):
		}
	}
	return false
}

// Logs returns the container's combined stdout/stderr, for failure
// diagnostics when health never comes up.
func (dep *Deployment) Logs(ctx context.Context) (string, error) {
	reader, err := dep.container.Logs(ctx)
	if err != nil {
		return "", fmt.Errorf("read container logs: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("drain container logs: %w", err)
	}
	return string(data), nil
}

// Teardown always attempts to bring the container down and remove the
// scratch directory; cleanup failures are returned but never override a
// caller's already-decided primary result.
func (dep *Deployment) Teardown(ctx context.Context) error {
	downCtx, cancel := context.WithTimeout(ctx, containerDeadline)
	defer cancel()

	var errs []string
	if err := dep.container.Terminate(downCtx); err != nil {
		errs = append(errs, fmt.Sprintf("terminate container: %v", err))
	}
	if err := os.RemoveAll(dep.ProjectDir); err != nil {
		errs = append(errs, fmt.Sprintf("remove scratch dir: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("sandbox teardown: %s", strings.Join(errs, "; "))
	}
	return nil
}

func extractArchive(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, f := range reader.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// projectRoot returns the single top-level directory inside an extracted
// archive, matching deploy_verify.py's "find the project root" step —
// the archive assembler roots everything under a directory named after
// the project.
func projectRoot(extractedDir string) string {
	entries, err := os.ReadDir(extractedDir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return extractedDir
	}
	return filepath.Join(extractedDir, entries[0].Name())
}
