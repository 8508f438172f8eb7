package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/usecase"
	"github.com/DevRickLin/inbox-autopilot/internal/bus"
	"github.com/DevRickLin/inbox-autopilot/internal/conf"
	"github.com/DevRickLin/inbox-autopilot/internal/data"
	"github.com/DevRickLin/inbox-autopilot/internal/service"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize external boundaries
	chatRepo := data.NewFeishuRepo(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Feishu.SelfID)
	aiRepo := data.NewOpenAIRepo(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.Store.DBPath, chatRepo, aiRepo)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	fmt.Printf("[Autopilot] Store DB: %s\n", cfg.Store.DBPath)

	settingsRepo := data.NewSettingsRepo(repo.ProviderSettings{
		Provider:     "openai",
		Model:        cfg.AI.Model,
		APIKey:       cfg.AI.APIKey,
		BaseURL:      cfg.AI.BaseURL,
		Tone:         cfg.Style.Tone,
		WritingStyle: cfg.Style.WritingStyle,
	})

	// Initialize event bus and usecase layer
	events := bus.New()

	activityUC := usecase.NewActivityUsecase(repos.Activity, events)
	agentUC := usecase.NewAgentUsecase(repos.Agent)
	registryUC := usecase.NewRegistryUsecase(repos.Automation, repos.Agent, activityUC, events)
	queueUC := usecase.NewQueueUsecase(repos.Action, events)
	knowledgeUC := usecase.NewKnowledgeUsecase(repos.Knowledge, activityUC, cfg.Knowledge.ToKnowledgeConfig())
	pipelineUC := usecase.NewPipelineUsecase(settingsRepo, repos.AI, repos.Thread, repos.Knowledge, repos.Agent)

	seedAgents(agentUC)

	// Initialize service layer
	loader := service.NewHistoryLoader(registryUC, pipelineUC, knowledgeUC, activityUC,
		repos.Progress, repos.Chat, events, cfg.Loader.ToLoaderConfig())
	executor := service.NewActionExecutor(queueUC, registryUC, pipelineUC, activityUC,
		repos.Agent, repos.Handoff, repos.Thread, repos.Chat, cfg.Executor.ToExecutorConfig())

	ctx := context.Background()
	loader.Start(ctx)
	executor.Start(ctx)

	fmt.Println("Starting Inbox Autopilot...")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	loader.Stop()
	executor.Stop()
}

// seedAgents instantiates the template catalog on first run so a fresh
// install has working personas to enable.
func seedAgents(agentUC *usecase.AgentUsecase) {
	ctx := context.Background()

	existing, err := agentUC.List(ctx)
	if err != nil {
		fmt.Printf("[Autopilot] Failed to list agents: %v\n", err)
		return
	}
	if len(existing) > 0 {
		return
	}

	for _, tpl := range agentUC.Templates() {
		if _, err := agentUC.CreateFromTemplate(ctx, tpl.Name); err != nil {
			fmt.Printf("[Autopilot] Failed to seed agent %q: %v\n", tpl.Name, err)
		}
	}
	fmt.Printf("[Autopilot] Seeded %d agents from templates\n", len(agentUC.Templates()))
}
