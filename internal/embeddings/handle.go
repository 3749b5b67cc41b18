package embeddings

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Factory builds the underlying provider. It runs at most once per
// successful initialisation.
type Factory func(ctx context.Context) (Provider, error)

const probeText = "dimension probe"

// Handle owns the process-wide embedding provider. The first caller builds
// and probes it; concurrent first callers wait for that one attempt. A
// dimension mismatch is remembered and returned to every later caller,
// while a transient failure lets the next caller try again.
type Handle struct {
	factory   Factory
	dimension int
	log       zerolog.Logger

	ready   atomic.Pointer[readyProvider]
	mu      sync.Mutex
	fatal   error
	initCnt atomic.Int32
}

type readyProvider struct{ p Provider }

func NewHandle(factory Factory, dimension int, log zerolog.Logger) *Handle {
	return &Handle{factory: factory, dimension: dimension, log: log}
}

// Init builds the provider if that has not happened yet.
func (h *Handle) Init(ctx context.Context) error {
	_, err := h.get(ctx)
	return err
}

func (h *Handle) get(ctx context.Context) (Provider, error) {
	if r := h.ready.Load(); r != nil {
		return r.p, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if r := h.ready.Load(); r != nil {
		return r.p, nil
	}
	if h.fatal != nil {
		return nil, h.fatal
	}

	h.initCnt.Add(1)
	p, err := h.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedding provider init: %w", err)
	}
	vec, err := p.Embed(ctx, probeText)
	if err != nil {
		h.discard(p)
		return nil, fmt.Errorf("embedding provider probe: %w", err)
	}
	if len(vec) != h.dimension {
		h.discard(p)
		h.fatal = fmt.Errorf("%w: provider returns %d, index expects %d", ErrDimensionMismatch, len(vec), h.dimension)
		return nil, h.fatal
	}

	h.ready.Store(&readyProvider{p: p})
	h.log.Info().Int("dimension", h.dimension).Msg("embedding provider ready")
	return p, nil
}

// discard releases a provider that failed its probe.
func (h *Handle) discard(p Provider) {
	if c, ok := p.(io.Closer); ok {
		if err := c.Close(); err != nil {
			h.log.Warn().Err(err).Msg("closing rejected embedding provider")
		}
	}
}

// Close releases the initialised provider, if any. A handle that never
// initialised has nothing to close.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.ready.Load()
	if r == nil {
		return nil
	}
	if c, ok := r.p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Embed returns the vector for text, initialising the provider on first use.
func (h *Handle) Embed(ctx context.Context, text string) ([]float32, error) {
	p, err := h.get(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := p.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != h.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), h.dimension)
	}
	return vec, nil
}

func (h *Handle) Dimension() int { return h.dimension }

// Inits reports how many initialisation attempts have run.
func (h *Handle) Inits() int { return int(h.initCnt.Load()) }
