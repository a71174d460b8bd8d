// Package api is the minimal operator HTTP surface named in spec.md §6:
// health/readiness, an event-stream upgrade, and the two state-transition
// endpoints (verify-report, fix) a verification client drives. The
// project-facing CRUD/auth surface is explicitly out of scope (spec.md
// §1) and lives in an external collaborator.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/genforge/pkg/database"
	"github.com/codeready-toolchain/genforge/pkg/events"
	"github.com/codeready-toolchain/genforge/pkg/project"
)

// FixRequester drives a bounded re-invocation of the sandbox repair loop
// against a failed project's stored spec and archive, per spec.md §6's
// "Auto-fix request" contract.
type FixRequester interface {
	RequestFix(ctx context.Context, projectID string, req FixRequest) error
}

// Server wires the HTTP surface to its collaborators.
type Server struct {
	projects *project.Repository
	db       *database.Client
	bus      *events.Bus
	conns    *events.ConnectionManager
	fixer    FixRequester

	router *gin.Engine
}

func NewServer(projects *project.Repository, db *database.Client, bus *events.Bus, conns *events.ConnectionManager, fixer FixRequester, corsOrigins []string) *Server {
	s := &Server{projects: projects, db: db, bus: bus, conns: conns, fixer: fixer}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), gin.Logger(), corsMiddleware(corsOrigins))
	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)
	s.router.POST("/projects/:id/verify-report", s.handleVerifyReport)
	s.router.POST("/projects/:id/fix", s.handleFix)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := database.Health(ctx, s.db.Pool)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": status, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": status})
}

// handleWebSocket upgrades the connection and hands it to the
// events.ConnectionManager, which owns the subscribe/unsubscribe
// protocol and forwards Bus events until the client disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.conns.HandleConnection(c.Request.Context(), conn)
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
