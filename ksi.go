// Package ksi provides a high-level façade over the event routing engine
// and the orchestration and completion services, enabling rapid
// construction of event-driven multi-agent daemons. Most applications
// interact with this package by:
//  1. Creating a Daemon via New() (optionally overriding config, backend,
//     spawner, or stores)
//  2. Loading transformer definitions and registering event handlers
//  3. Emitting events and starting orchestrations
//
// The façade delegates routing to router.Router and lifecycle management
// to orchestration.Coordinator while keeping setup ergonomics concise.
// All defaults are safe for local development and testing; production
// deployments typically supply a real completion backend, a durable
// context store, and a structured logger.
package ksi

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/durapensa/ksi-sub008/completion"
	"github.com/durapensa/ksi-sub008/config"
	"github.com/durapensa/ksi-sub008/core"
	"github.com/durapensa/ksi-sub008/lineage"
	"github.com/durapensa/ksi-sub008/logging"
	"github.com/durapensa/ksi-sub008/orchestration"
	"github.com/durapensa/ksi-sub008/router"
	"github.com/durapensa/ksi-sub008/transformer"
)

// Options configures the Daemon instance.
type Options struct {
	// Config holds daemon-level settings. Defaults to config.Default();
	// use config.Load() to read the KSI_ environment.
	Config config.Config

	// Backend serves completion requests. Defaults to a mock backend
	// with deterministic canned responses.
	Backend completion.Backend

	// Spawner starts orchestration agents. Defaults to an accept-all
	// spawner for purely logical agents.
	Spawner orchestration.Spawner

	// Store resolves lineage context references across process
	// boundaries (defaults to an in-memory TTL store if not provided).
	Store lineage.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Daemon is the high-level façade aggregating the routing engine and the
// orchestration and completion services.
type Daemon struct {
	opts Options

	lineage     *lineage.Manager
	registry    *transformer.Registry
	router      *router.Router
	coordinator *orchestration.Coordinator
	completions *completion.Service
}

// New creates a new Daemon with optional overrides. Any unset dependency
// is initialized with an in-memory implementation sized by the config.
func New(optFns ...func(o *Options)) (*Daemon, error) {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Store == nil {
		opts.Store = lineage.NewInMemoryStore()
	}

	lm := lineage.NewManager(func(o *lineage.Options) {
		o.Store = opts.Store
		o.TTL = opts.Config.ContextTTL
		o.Logger = opts.Logger
	})
	registry := transformer.NewRegistry(func(o *transformer.Options) {
		o.Logger = opts.Logger
	})
	rt := router.New(func(o *router.Options) {
		o.Config = router.Config{MaxCascadeDepth: opts.Config.MaxCascadeDepth}
		o.Lineage = lm
		o.Registry = registry
		o.Logger = opts.Logger
	})
	coordinator := orchestration.New(func(o *orchestration.Options) {
		o.Config = orchestration.Config{
			HistoryCapacity: opts.Config.HistoryCapacity,
			CleanupDelay:    opts.Config.CleanupDelay,
			RetentionWindow: opts.Config.RetentionWindow,
			IdleTimeout:     opts.Config.IdleTimeout,
		}
		o.Emitter = rt
		o.Spawner = opts.Spawner
		o.Logger = opts.Logger
	})
	completions := completion.NewService(func(o *completion.Options) {
		o.Config = completion.Config{RequestTimeout: opts.Config.CompletionTimeout}
		o.Backend = opts.Backend
		o.Emitter = rt
		o.Logger = opts.Logger
	})

	if err := coordinator.RegisterTemplateFuncs(rt.Templates()); err != nil {
		return nil, fmt.Errorf("ksi: register template funcs: %w", err)
	}
	if err := rt.RegisterHandler(orchestration.EventStateQuery, coordinator.StateQueryHandler()); err != nil {
		return nil, fmt.Errorf("ksi: register state query handler: %w", err)
	}
	if err := rt.RegisterHandler(completion.EventRequest, completions.Handler()); err != nil {
		return nil, fmt.Errorf("ksi: register completion handler: %w", err)
	}

	if dir := opts.Config.TransformerDir; dir != "" {
		n, err := registry.LoadDir(dir, transformer.ScopeSystem)
		if err != nil {
			return nil, fmt.Errorf("ksi: load system transformers: %w", err)
		}
		opts.Logger.Info("system transformers loaded", "dir", dir, "count", n)
	}

	return &Daemon{
		opts:        opts,
		lineage:     lm,
		registry:    registry,
		router:      rt,
		coordinator: coordinator,
		completions: completions,
	}, nil
}

// Emit routes one event through the daemon's pipeline.
func (d *Daemon) Emit(ctx context.Context, name string, data map[string]any) error {
	return d.router.Emit(ctx, name, data)
}

// EmitWithRef routes an event whose causal parent is named by a stored
// context reference, re-associating events that re-enter the daemon
// from an external agent with the lineage they left under.
func (d *Daemon) EmitWithRef(ctx context.Context, name string, data map[string]any, ref string) error {
	return d.router.EmitWithRef(ctx, name, data, ref)
}

// RegisterHandler subscribes a handler to events matching pattern.
func (d *Daemon) RegisterHandler(pattern string, h core.Handler) error {
	return d.router.RegisterHandler(pattern, h)
}

// RegisterTransformer adds a single transformer definition.
func (d *Daemon) RegisterTransformer(def transformer.Definition) error {
	return d.registry.Register(def)
}

// LoadTransformers reads a YAML transformer document from r and registers
// its definitions under the given scope, returning how many were loaded.
func (d *Daemon) LoadTransformers(scope transformer.Scope, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("ksi: read transformer document: %w", err)
	}
	return d.registry.LoadDocument(data, scope)
}

// Router returns the underlying routing engine.
func (d *Daemon) Router() *router.Router { return d.router }

// Coordinator returns the orchestration coordinator.
func (d *Daemon) Coordinator() *orchestration.Coordinator { return d.coordinator }

// Completions returns the completion service.
func (d *Daemon) Completions() *completion.Service { return d.completions }

// Registry returns the transformer registry.
func (d *Daemon) Registry() *transformer.Registry { return d.registry }

// Lineage returns the lineage manager.
func (d *Daemon) Lineage() *lineage.Manager { return d.lineage }

// Shutdown closes the coordinator and drains in-flight completion and
// async transformer work, up to ctx's deadline.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if err := d.coordinator.Close(); err != nil {
		return err
	}
	if err := d.completions.Shutdown(ctx); err != nil {
		return err
	}
	return d.router.Shutdown(ctx)
}

// NewLogger builds a structured logger honoring the config's log level
// and format, for callers that want the daemon's own logging stack.
func NewLogger(cfg config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLogLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
		AddSource: false,
	})
}
