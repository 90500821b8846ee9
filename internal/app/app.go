// Package app wires the application together: database, Genkit, stores,
// tool dispatcher, pipeline engine, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wayfarer0/wayfarer/db"
	"github.com/wayfarer0/wayfarer/internal/api"
	"github.com/wayfarer0/wayfarer/internal/config"
	"github.com/wayfarer0/wayfarer/internal/database"
	"github.com/wayfarer0/wayfarer/internal/genai"
	"github.com/wayfarer0/wayfarer/internal/knowledge"
	"github.com/wayfarer0/wayfarer/internal/orchestrator"
	"github.com/wayfarer0/wayfarer/internal/security"
	"github.com/wayfarer0/wayfarer/internal/session"
	"github.com/wayfarer0/wayfarer/internal/tools"
)

// App holds every constructed dependency. Construct once per process via
// Setup and release with Close.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Pool         *pgxpool.Pool
	Genkit       *genkit.Genkit
	Model        *genai.Client
	SessionStore *session.Store
	Knowledge    *knowledge.Retriever
	Dispatcher   *tools.Dispatcher
	Engine       *orchestrator.Engine
	Server       *api.Server
}

// Setup migrates the database and constructs the full dependency graph.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if err := db.Migrate(cfg.ConnString()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.ConnString())
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	a.Genkit = g
	logger.Info("initialized genkit", "model", cfg.ModelName, "embedder", cfg.EmbedderModel)

	a.Model = genai.NewClient(g, cfg.ModelName, logger)

	embedder := genai.NewEmbedder(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel))
	a.Knowledge = knowledge.NewRetriever(knowledge.NewPGQuerier(pool), embedder, logger)

	a.SessionStore = session.NewStore(session.NewQueries(pool), pool, logger)

	guard := security.NewHTTP(logger)
	dispatcher, err := tools.NewDispatcher(tools.Config{
		SearchBaseURL:     cfg.Search.BaseURL,
		SearchMaxResults:  cfg.Search.MaxResults,
		CustomAPIEndpoint: cfg.CustomAPI.Endpoint,
		GeocodeURL:        cfg.Weather.GeocodeURL,
		ForecastURL:       cfg.Weather.ForecastURL,
	}, guard, a.Knowledge, logger)
	if err != nil {
		return nil, err
	}
	a.Dispatcher = dispatcher
	a.Model.RegisterToolSpecs(dispatcher.Specs())

	engine, err := orchestrator.NewEngine(orchestrator.Config{
		HistoryWindow:  int32(cfg.HistoryWindow),
		RetrievalTopK:  cfg.RetrievalTopK,
		ResponseFormat: cfg.ResponseFormat,
		RunTimeout:     cfg.RunTimeout,
	}, a.Model, a.SessionStore, a.Knowledge, dispatcher, logger)
	if err != nil {
		return nil, err
	}
	a.Engine = engine

	server, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Engine:       engine,
		SessionStore: a.SessionStore,
		Knowledge:    a.Knowledge,
		Pool:         pool,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return nil, err
	}
	a.Server = server

	return a, nil
}

// Close releases held resources. Safe to call on a partially constructed App.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
