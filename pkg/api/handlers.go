package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
	"github.com/codeready-toolchain/genforge/pkg/project"
	"github.com/codeready-toolchain/genforge/pkg/sandbox"
)

// VerifyReportRequest is the body of POST /projects/{id}/verify-report,
// matching spec.md §6's "Verification reporter" contract verbatim: a
// sandbox.VerificationReport posted by an external verification client
// (e.g. a desktop client driving the sandbox itself).
type VerifyReportRequest = sandbox.VerificationReport

// FixRequest is the body of POST /projects/{id}/fix, matching spec.md
// §6's "Auto-fix request" contract.
type FixRequest = sandbox.AutoFixRequest

// handleVerifyReport transitions a Project from awaiting_verification to
// completed or failed based on the reported outcome.
func (s *Server) handleVerifyReport(c *gin.Context) {
	projectID := c.Param("id")

	p, err := s.projects.Get(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	if p.Status != project.StatusAwaitingVerification {
		c.JSON(http.StatusConflict, gin.H{"error": "project is not awaiting verification", "status": p.Status})
		return
	}

	var report VerifyReportRequest
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification report: " + err.Error()})
		return
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode verification report"})
		return
	}
	if err := s.projects.SetVerification(c.Request.Context(), projectID, reportJSON); err != nil {
		writeError(c, err)
		return
	}

	newStatus := project.StatusCompleted
	if !report.Passed {
		newStatus = project.StatusFailed
	}
	if err := s.projects.UpdateStatus(c.Request.Context(), projectID, newStatus); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": newStatus})
}

// handleFix drives a bounded re-invocation of the repair loop (C7)
// against a failed project's stored spec and archive. Only valid in
// state failed.
func (s *Server) handleFix(c *gin.Context) {
	projectID := c.Param("id")

	p, err := s.projects.Get(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	if p.Status != project.StatusFailed {
		c.JSON(http.StatusConflict, gin.H{"error": "fix is only valid for a failed project", "status": p.Status})
		return
	}

	var req FixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fix request: " + err.Error()})
		return
	}
	if req.AttemptNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attempt_number must be >= 1"})
		return
	}
	if len(req.FailedTests) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed_tests must not be empty"})
		return
	}

	if err := s.fixer.RequestFix(c.Request.Context(), projectID, req); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "fix requested"})
}

func writeError(c *gin.Context, err error) {
	if apierrors.Is(err, apierrors.KindNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
