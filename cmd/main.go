package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dentsim/dentsim-backend/internal/config"
	"github.com/dentsim/dentsim-backend/internal/content"
	"github.com/dentsim/dentsim-backend/internal/data/db"
	"github.com/dentsim/dentsim-backend/internal/data/repos/session"
	"github.com/dentsim/dentsim-backend/internal/handlers"
	"github.com/dentsim/dentsim-backend/internal/observability"
	"github.com/dentsim/dentsim-backend/internal/platform/gemini"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
	"github.com/dentsim/dentsim-backend/internal/server"
	"github.com/dentsim/dentsim-backend/internal/services"
	"github.com/dentsim/dentsim-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration from main...")
	cfgPath := utils.GetEnv("CONFIG_PATH", "config.yaml", log)
	cfg, err := config.Load(cfgPath, log)
	if err != nil {
		log.Error("Could not load configuration", "error", err)
		os.Exit(1)
	}

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "dentsim-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(ctx); err != nil {
				log.Warn("OTel shutdown failed", "error", err)
			}
		}()
	}

	// Database
	dbService, err := db.New(cfg.Database, log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err = dbService.AutoMigrateAll(); err != nil {
		log.Warn("Auto migration failed", "error", err)
	}
	theDB := dbService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	sessionRepo := session.NewStudentSessionRepo(theDB, log)
	chatLogRepo := session.NewChatLogRepo(theDB, log)
	examResultRepo := session.NewExamResultRepo(theDB, log)

	// Static content
	log.Info("Loading case and rule content from main...")
	var (
		ruleStore *content.RuleStore
		caseStore *content.CaseStore
	)
	var g errgroup.Group
	g.Go(func() error {
		ruleStore = content.NewRuleStore(cfg.Content.RulesPath, log)
		return nil
	})
	g.Go(func() error {
		caseStore = content.NewCaseStore(cfg.Content.CasesPath, cfg.Content.DefaultCaseID, log)
		return nil
	})
	_ = g.Wait()
	if ruleStore.Empty() {
		log.Warn("Rule table is empty, all actions will be unscored", "path", cfg.Content.RulesPath)
	}
	if caseStore.DefaultCaseID() == "" {
		log.Warn("No cases loaded, sessions cannot be created", "path", cfg.Content.CasesPath)
	}

	// Model client
	geminiClient, err := gemini.NewClient(log, gemini.Config{
		APIKey:            os.Getenv("GEMINI_API_KEY"),
		BaseURL:           cfg.Model.Endpoint,
		Model:             cfg.Model.Name,
		SystemInstruction: services.EducatorSystemInstruction,
		Temperature:       cfg.Model.Temperature,
		TimeoutSeconds:    cfg.Model.TimeoutSeconds,
		MaxRetries:        cfg.Model.MaxRetries,
	})
	if err != nil {
		log.Error("Could not init Gemini client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	assessmentEngine := services.NewAssessmentEngine(ruleStore, log)
	scenarioService := services.NewScenarioService(theDB, log, sessionRepo, examResultRepo, caseStore, ruleStore)
	agentService := services.NewAgentService(log, geminiClient, assessmentEngine, scenarioService, chatLogRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	actionHandler := handlers.NewActionHandler(log, agentService)
	sessionHandler := handlers.NewSessionHandler(log, scenarioService, chatLogRepo, examResultRepo, caseStore)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ActionHandler:  actionHandler,
		SessionHandler: sessionHandler,
	})

	port := cfg.Server.Port
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
