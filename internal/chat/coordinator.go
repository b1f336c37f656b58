package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parley/internal/llm"
	"parley/internal/observability"
)

// ContextBuilder produces the ordered message sequence fed to the backend
// for one generation.
type ContextBuilder func(ctx context.Context) ([]llm.Message, error)

// generation is the in-memory record of one in-flight backend call.
type generation struct {
	cancel context.CancelFunc
}

// GenerationCoordinator is the single source of truth for "is a generation
// running for conversation X" and the cancellation path. It tracks at most
// one live registration per conversation ID; a concurrent second Run for the
// same conversation overwrites the first's registration, and each call still
// cleans up only its own entry.
type GenerationCoordinator struct {
	mu       sync.Mutex
	inflight map[string]*generation

	backend llm.Provider
	logger  observability.Logger
}

// NewGenerationCoordinator creates a coordinator for the given backend.
func NewGenerationCoordinator(backend llm.Provider, logger observability.Logger) *GenerationCoordinator {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &GenerationCoordinator{
		inflight: make(map[string]*generation),
		backend:  backend,
		logger:   logger.WithComponent("coordinator"),
	}
}

// Active reports whether a generation is currently registered for the
// conversation.
func (c *GenerationCoordinator) Active(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[conversationID]
	return ok
}

// Run registers a cancellation control for conversationID, builds the
// backend request context, and invokes the backend. The registration is
// removed on every exit path. Returns ErrCancelled when the generation was
// stopped via Cancel, or a wrapped backend error otherwise.
func (c *GenerationCoordinator) Run(ctx context.Context, conversationID string, build ContextBuilder) (string, error) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := &generation{cancel: cancel}
	c.register(conversationID, g)
	defer c.unregister(conversationID, g)

	messages, err := build(genCtx)
	if err != nil {
		return "", fmt.Errorf("build context: %w", err)
	}

	start := time.Now()
	resp, err := c.backend.Complete(genCtx, messages, llm.Options{})
	if err != nil {
		if genCtx.Err() != nil && ctx.Err() == nil {
			// Our control fired, not the caller's: this was a Cancel.
			return "", ErrCancelled
		}
		return "", fmt.Errorf("backend: %w", err)
	}

	c.logger.DebugContext(ctx, "generation complete",
		"conversation_id", conversationID,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.PromptTokens,
		"output_tokens", resp.OutputTokens,
	)
	return resp.Content, nil
}

// Cancel signals the in-flight generation for conversationID, if any, and
// removes its registration immediately. A no-op when nothing is in flight.
// The backend is asked to stop server-side work as well; that notification
// is best-effort and failures are only logged.
func (c *GenerationCoordinator) Cancel(ctx context.Context, conversationID string) {
	c.mu.Lock()
	g, ok := c.inflight[conversationID]
	if ok {
		delete(c.inflight, conversationID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	g.cancel()
	c.logger.InfoContext(ctx, "generation cancelled", "conversation_id", conversationID)

	go func() {
		notifyCtx, cancelNotify := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelNotify()
		if err := c.backend.NotifyStop(notifyCtx, conversationID); err != nil {
			c.logger.Debug("backend stop notification failed", "conversation_id", conversationID, "error", err)
		}
	}()
}

func (c *GenerationCoordinator) register(conversationID string, g *generation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[conversationID] = g
}

// unregister removes the entry only if it still belongs to this call, so a
// newer registration for the same conversation is left alone.
func (c *GenerationCoordinator) unregister(conversationID string, g *generation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.inflight[conversationID]; ok && cur == g {
		delete(c.inflight, conversationID)
	}
}
