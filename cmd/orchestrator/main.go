// Command orchestrator wires the generation pipeline's components into a
// runnable service: HTTP health/event-stream/verify-report/fix endpoints
// for network operability, plus a one-shot "-generate" CLI mode per
// spec.md §6's "Exit codes (for any CLI wrapper)" contract — the
// end-user-facing HTTP surface that drives generation itself is an
// external collaborator and is not part of this binary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/codeready-toolchain/genforge/pkg/api"
	"github.com/codeready-toolchain/genforge/pkg/archive"
	"github.com/codeready-toolchain/genforge/pkg/autofix"
	"github.com/codeready-toolchain/genforge/pkg/config"
	"github.com/codeready-toolchain/genforge/pkg/database"
	"github.com/codeready-toolchain/genforge/pkg/events"
	"github.com/codeready-toolchain/genforge/pkg/llm"
	"github.com/codeready-toolchain/genforge/pkg/models"
	"github.com/codeready-toolchain/genforge/pkg/pipeline"
	"github.com/codeready-toolchain/genforge/pkg/project"
	"github.com/codeready-toolchain/genforge/pkg/rag"
	"github.com/codeready-toolchain/genforge/pkg/render"
	"github.com/codeready-toolchain/genforge/pkg/sandbox"
	"github.com/codeready-toolchain/genforge/pkg/specagent"
	"github.com/codeready-toolchain/genforge/pkg/storage"

	"github.com/gin-gonic/gin"
)

const (
	exitOK            = 0
	exitPipelineError = 1
	exitConfigError   = 2
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")

	generate := flag.Bool("generate", false, "run a single prompt-to-archive generation and exit")
	userID := flag.String("user-id", "", "owning user id (generate mode)")
	projectID := flag.String("project-id", "", "existing project id to refine (generate mode, optional)")
	projectName := flag.String("project-name", "", "project name (generate mode)")
	prompt := flag.String("prompt", "", "natural-language backend description (generate mode)")
	modelID := flag.String("model-id", "", "starting model id (generate mode, optional)")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(exitConfigError)
	}
	if err := config.NewValidator(cfg).ValidateAll(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		os.Exit(exitConfigError)
	}

	ctx := context.Background()

	dbClient, err := connectDatabase(ctx, cfg)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(exitConfigError)
	}
	defer dbClient.Pool.Close()
	log.Println("Connected to PostgreSQL database")

	svc, err := wire(cfg, dbClient)
	if err != nil {
		log.Printf("Failed to wire components: %v", err)
		os.Exit(exitConfigError)
	}

	if *generate {
		runGenerate(ctx, svc, *userID, *projectID, *projectName, *prompt, *modelID)
		return
	}

	runServer(cfg, svc)
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*database.Client, error) {
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	if cfg.DatabaseURL != "" {
		dbConfig.RawURL = cfg.DatabaseURL
	}
	return database.NewClient(ctx, dbConfig)
}

// service bundles every wired component cmd/orchestrator's two entry
// points (the HTTP server and the one-shot generate CLI) depend on.
type service struct {
	projects     *project.Repository
	orchestrator *pipeline.Orchestrator
	bus          *events.Bus
	conns        *events.ConnectionManager
	fixer        *autofix.Requester
	dbClient     *database.Client
}

func wire(cfg *config.Config, dbClient *database.Client) (*service, error) {
	projects := project.NewRepository(dbClient.Pool)
	threads := project.NewThreadRepository(dbClient.Pool)
	documents := project.NewDocumentRepository(dbClient.Pool)

	embedder, err := rag.NewGRPCEmbedder(getEnv("EMBEDDING_SERVICE_ADDR", "localhost:50052"))
	if err != nil {
		return nil, fmt.Errorf("dial embedding sidecar: %w", err)
	}
	vectorStore, err := rag.NewVectorStore(getEnv("QDRANT_ADDR", "localhost:6334"), "genforge-documents")
	if err != nil {
		return nil, fmt.Errorf("dial vector store: %w", err)
	}
	retriever := rag.NewRetriever(embedder, vectorStore, documents)

	providers := make(map[string]llm.Provider)
	llmAddr := getEnv("LLM_SERVICE_ADDR", "localhost:50051")
	for _, info := range models.List() {
		if _, ok := providers[info.Provider]; ok {
			continue
		}
		provider, err := llm.NewGRPCProvider(llmAddr, models.DefaultModelID)
		if err != nil {
			return nil, fmt.Errorf("dial LLM sidecar for provider %s: %w", info.Provider, err)
		}
		providers[info.Provider] = provider
	}
	router := llm.NewRouter(providers, nil)
	agent := specagent.New(router)

	renderer, err := render.NewGRPCRenderer(getEnv("RENDER_SERVICE_ADDR", "localhost:50053"))
	if err != nil {
		return nil, fmt.Errorf("dial render sidecar: %w", err)
	}

	scratchRoot := cfg.ScratchRoot
	assembler := archive.NewAssembler(filepath.Join(scratchRoot, "archives"))
	store := storage.NewFilesystem(getEnv("STORAGE_ROOT", "./data"))

	bus := events.NewBus()
	conns := events.NewConnectionManager(bus)

	orchestrator := pipeline.New(projects, threads, agent, retriever, renderer, assembler, store, bus)

	deployer := sandbox.NewDeployer(filepath.Join(scratchRoot, "sandbox"))
	repairLoop := &sandbox.Loop{
		Deployer:    deployer,
		Implementer: &autofix.LLMImplementer{Router: router},
		Reviewer:    &autofix.LLMReviewer{Router: router},
		Archiver:    assembler,
		EntryPoint:  "app/main.py",
	}
	fixer := autofix.NewRequester(projects, repairLoop, store, bus)

	return &service{
		projects:     projects,
		orchestrator: orchestrator,
		bus:          bus,
		conns:        conns,
		fixer:        fixer,
		dbClient:     dbClient,
	}, nil
}

func runServer(cfg *config.Config, svc *service) {
	gin.SetMode(cfg.GinMode)

	server := api.NewServer(svc.projects, svc.dbClient, svc.bus, svc.conns, svc.fixer, cfg.CORSOrigins)

	httpServer := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: server.Router()}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

func runGenerate(ctx context.Context, svc *service, userID, projectID, projectName, prompt, modelID string) {
	if userID == "" || prompt == "" || (projectID == "" && projectName == "") {
		log.Println("generate mode requires -user-id, -prompt, and either -project-name or -project-id")
		os.Exit(exitConfigError)
	}

	p, err := svc.orchestrator.Run(ctx, pipeline.Request{
		UserID:      userID,
		ProjectID:   projectID,
		ProjectName: projectName,
		Prompt:      prompt,
		ModelID:     modelID,
	})
	if err != nil {
		log.Printf("Generation failed: %v", err)
		os.Exit(exitPipelineError)
	}

	out, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(out))
	os.Exit(exitOK)
}
