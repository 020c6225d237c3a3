package completion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/durapensa/ksi-sub008/core"
	"github.com/durapensa/ksi-sub008/lineage"
	"github.com/durapensa/ksi-sub008/logging"
	"github.com/durapensa/ksi-sub008/router"
)

// Event names the service listens on and emits.
const (
	// EventRequest is the bus request the service's Handler answers.
	// Data: prompt (required), system, model, session_id.
	EventRequest = "completion:request"

	// EventResult delivers a finished completion: request_id, text,
	// model, provider, finish_reason, duration_ms, and session_id /
	// usage when present.
	EventResult = "completion:result"

	// EventError delivers a failed completion: request_id, error,
	// provider, and model when one was requested.
	EventError = "completion:error"
)

// Config defines tuning parameters for the completion service.
type Config struct {
	// RequestTimeout bounds one backend call. Expiry surfaces as a
	// completion:error event. Zero disables the bound.
	RequestTimeout time.Duration
}

// DefaultConfig provides production-ready defaults. Five minutes covers
// long reasoning completions while still shedding hung provider calls.
var DefaultConfig = Config{
	RequestTimeout: 5 * time.Minute,
}

// Options configures a Service instance using the functional options
// pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig
	// if not specified.
	Config Config

	// Backend serves the completions. Defaults to a MockBackend so a
	// bare NewService works in tests and examples.
	Backend Backend

	// Emitter routes the result events. Defaults to a self-contained
	// router.
	Emitter core.Emitter

	// Logger provides structured logging. Defaults to a no-op logger.
	Logger logging.Logger
}

// Service runs completions asynchronously and reports outcomes as
// events.
type Service struct {
	config  Config
	backend Backend
	emitter core.Emitter
	logger  logging.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewService creates a completion Service.
//
// Example:
//
//	svc := completion.NewService(func(o *completion.Options) {
//	    o.Backend = anthropic.New()
//	    o.Emitter = rt
//	    o.Logger = myLogger
//	})
func NewService(optFns ...func(o *Options)) *Service {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Backend == nil {
		opts.Backend = NewMockBackend()
	}
	if opts.Emitter == nil {
		opts.Emitter = router.New()
	}

	return &Service{
		config:  opts.Config,
		backend: opts.Backend,
		emitter: opts.Emitter,
		logger:  opts.Logger,
	}
}

// Backend returns the backend this service completes against.
func (s *Service) Backend() Backend { return s.backend }

// Request accepts a completion request and returns immediately. The
// backend call runs on a detached goroutine; its outcome is emitted as a
// completion:result or completion:error event in the lineage of the
// ambient context, so the result correlates with whatever event caused
// the request.
func (s *Service) Request(ctx context.Context, req Request) (Ack, error) {
	if s.closed.Load() {
		return Ack{}, ErrClosed
	}
	if req.Prompt == "" {
		return Ack{}, fmt.Errorf("completion: request requires a prompt")
	}

	ack := Ack{RequestID: "req_" + uuid.NewString()}
	if lc, ok := lineage.FromContext(ctx); ok {
		ack.CorrelationID = lc.CorrelationID
	}

	// Survive the trigger's cancellation but keep its lineage.
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go s.run(detached, ack.RequestID, req)

	s.logger.Debug("completion request accepted",
		"request_id", ack.RequestID,
		"provider", s.backend.Info().Provider,
		"model", req.Model,
	)
	return ack, nil
}

// Handler adapts the service to bus traffic: it serves
// completion:request events, reading prompt, system, model, and
// session_id from the event data.
func (s *Service) Handler() core.Handler {
	return func(ctx context.Context, ev core.Event) error {
		req := Request{
			Prompt:    ev.String("prompt"),
			System:    ev.String("system"),
			Model:     ev.String("model"),
			SessionID: ev.String("session_id"),
		}
		_, err := s.Request(ctx, req)
		return err
	}
}

// Shutdown stops accepting requests and waits for in-flight completions
// to finish emitting, up to ctx's deadline.
func (s *Service) Shutdown(ctx context.Context) error {
	s.closed.Store(true)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("completion service shut down")
		return nil
	case <-ctx.Done():
		s.logger.Warn("completion shutdown abandoned with requests in flight",
			"error", ctx.Err().Error(),
		)
		return ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, id string, req Request) {
	defer s.wg.Done()
	start := time.Now()

	cctx := ctx
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	res, err := s.backend.Complete(cctx, req)
	if err != nil {
		s.logger.Error("completion failed",
			"request_id", id,
			"provider", s.backend.Info().Provider,
			"error", err.Error(),
		)
		data := map[string]any{
			"request_id": id,
			"provider":   s.backend.Info().Provider,
			"error":      err.Error(),
		}
		if req.Model != "" {
			data["model"] = req.Model
		}
		s.emit(ctx, EventError, data)
		return
	}

	elapsed := time.Since(start)
	s.logger.Info("completion finished",
		"request_id", id,
		"provider", s.backend.Info().Provider,
		"model", res.Model,
		"duration_ms", elapsed.Milliseconds(),
	)

	data := map[string]any{
		"request_id":    id,
		"text":          res.Text,
		"model":         res.Model,
		"provider":      s.backend.Info().Provider,
		"finish_reason": res.FinishReason,
		"duration_ms":   elapsed.Milliseconds(),
	}
	if req.SessionID != "" {
		data["session_id"] = req.SessionID
	}
	if res.Usage != nil {
		data["usage"] = map[string]any{
			"input_tokens":  res.Usage.InputTokens,
			"output_tokens": res.Usage.OutputTokens,
		}
	}
	s.emit(ctx, EventResult, data)
}

func (s *Service) emit(ctx context.Context, name string, data map[string]any) {
	if err := s.emitter.Emit(ctx, name, data); err != nil {
		s.logger.Error("completion event emission failed",
			"event", name,
			"error", err.Error(),
		)
	}
}
