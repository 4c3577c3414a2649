package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/jit/internal/api"
	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/config"
	"github.com/ShayCichocki/jit/internal/decompose"
	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/internal/orchestrator"
	"github.com/ShayCichocki/jit/internal/state"
)

// staleRunAge is how old a run still marked running must be before startup
// recovery treats it as interrupted. Younger runs may belong to another live
// jit process sharing the database.
const staleRunAge = time.Hour

// Which parts of the runtime a command needs.
const (
	needTools = 1 << iota
	needState
	needEngine
)

// runtime holds the wired components shared by the commands.
type runtime struct {
	cfg    *config.Config
	logger *engine.DebugLogger
	events *engine.MultiSink

	tools *capability.Watcher

	db      *state.DB
	session *state.Session

	client    *api.Client
	backend   *api.Backend
	scheduler *engine.Scheduler
	facade    *orchestrator.Facade
}

// newRuntime loads configuration and builds the requested parts. The engine
// needs tools and state, so asking for it implies both.
func newRuntime(needs int) (rt *runtime, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := engine.NewDebugLogger(cfg.Logging.Path)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	engine.SetPackageLogger(logger)

	rt = &runtime{cfg: cfg, logger: logger, events: engine.NewMultiSink()}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	if needs&needEngine != 0 {
		needs |= needTools | needState
	}
	if needs&needTools != 0 {
		if err := rt.openTools(); err != nil {
			return rt, err
		}
	}
	if needs&needState != 0 {
		if err := rt.openState(); err != nil {
			return rt, err
		}
	}
	if needs&needEngine != 0 {
		if err := rt.buildEngine(); err != nil {
			return rt, err
		}
	}
	return rt, nil
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (rt *runtime) openTools() error {
	w, err := capability.NewWatcher(capability.Options{
		Builtin:      rt.cfg.Tools.Builtin,
		ManifestPath: rt.cfg.Tools.Manifest,
		WorkDir:      rt.cfg.Tools.WorkDir,
		Protected:    rt.cfg.Tools.Protected,
	})
	if err != nil {
		return fmt.Errorf("load tools: %w", err)
	}
	w.SetDebugLog(rt.logger.Func())
	rt.tools = w
	return nil
}

func (rt *runtime) openState() error {
	path := rt.cfg.State.Path
	if path == "" {
		path = state.DefaultDBPath()
	}

	db, err := state.OpenWithDriver(rt.cfg.State.Driver, path)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	rt.db = db
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state: %w", err)
	}

	recovered, err := state.NewRecoveryManager(db).MarkInterrupted(time.Now().Add(-staleRunAge))
	if err != nil {
		rt.logger.Log("[state] recovery: %v", err)
	} else if recovered > 0 {
		rt.logger.Log("[state] marked %d stale runs as interrupted", recovered)
	}

	id := sessionID
	switch {
	case newSession:
		info, err := db.CreateSession("")
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		id = info.ID
	case lastSession:
		info, err := db.LatestSession()
		if err != nil {
			return fmt.Errorf("find latest session: %w", err)
		}
		if info != nil {
			id = info.ID
		}
	}
	session, err := db.Session(id)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	rt.session = session
	return nil
}

func (rt *runtime) buildEngine() error {
	cfg := rt.cfg

	apiKey, err := config.GetAPIKey(cfg)
	if err != nil {
		return err
	}
	client, err := api.NewClient(api.ClientConfig{
		APIKey:     apiKey,
		UseBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:  cfg.Anthropic.AWSRegion,
		AWSProfile: cfg.Anthropic.AWSProfile,
		MaxTokens:  cfg.Anthropic.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("create API client: %w", err)
	}
	rt.client = client

	rt.backend = api.NewBackend(client, cfg.Engine.MaxToolIterations)
	rt.backend.SetToolCallHandler(func(tc api.ToolCall) {
		rt.logger.Log("[backend] %s: %s (error=%t)", tc.Invocation, tc.Action, tc.IsError)
		engine.Emit(rt.events, toolCallEvent(tc))
	})

	rt.scheduler = engine.NewScheduler(rt.backend,
		engine.WithAgentModels(cfg.Models.Agent...),
		engine.WithSynthesizerModels(cfg.Models.Synthesizer...),
		engine.WithMaxParallel(cfg.Engine.MaxParallel),
		engine.WithRetriesPerModel(cfg.Engine.RetriesPerModel),
		engine.WithCallTimeout(cfg.Engine.CallTimeout),
		engine.WithRegistry(rt.tools.Current()),
		engine.WithEventSink(rt.events),
	)

	policy := []engine.ChainOption{
		engine.WithChainRetries(cfg.Engine.RetriesPerModel),
		engine.WithChainTimeout(cfg.Engine.CallTimeout),
	}
	router := decompose.NewRouter(client, cfg.Models.Router, policy...)
	router.SetDebugLog(rt.logger.Func())
	planner := decompose.NewPlanner(client, cfg.Models.Planner, policy...)
	planner.SetDebugLog(rt.logger.Func())

	rt.facade = orchestrator.New(orchestrator.RequiredConfig{
		Router:    router,
		Planner:   planner,
		Scheduler: rt.scheduler,
		Backend:   rt.backend,
	},
		orchestrator.WithMemory(rt.session),
		orchestrator.WithRunStore(rt.db),
		orchestrator.WithRegistrySource(rt.tools.Current),
		orchestrator.WithEventSink(rt.events),
		orchestrator.WithLogger(rt.logger),
		orchestrator.WithContextBudgets(cfg.Context.RouterTokens, cfg.Context.PlannerTokens),
	)
	return nil
}

// Close releases everything the runtime opened.
func (rt *runtime) Close() {
	if rt.tools != nil {
		rt.tools.Close()
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Log("[state] close: %v", err)
		}
	}
	if rt.client != nil {
		in, out := rt.client.Tracker().Total()
		rt.logger.Log("[api] %d calls, %d input tokens, %d output tokens", rt.client.Tracker().Calls(), in, out)
	}
	rt.logger.Close()
}

// toolCallEvent reports a backend tool call against the subtask that made it.
// Calls made outside a subtask carry no subtask ID.
func toolCallEvent(tc api.ToolCall) engine.Event {
	id, ok := strings.CutPrefix(tc.Invocation, engine.AgentNamePrefix)
	if !ok {
		id = ""
	}
	return engine.Event{
		Type:      engine.EventToolCall,
		SubtaskID: id,
		Message:   tc.Action,
		Timestamp: time.Now(),
	}
}
