package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/metrics"
)

// Phase is the orchestrator state.
type Phase string

// Phases of one orchestrated search.
const (
	PhaseIdle       Phase = "idle"
	PhaseRetrieving Phase = "retrieving"
	PhaseEmbedding  Phase = "embedding"
	PhaseSearching  Phase = "searching"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// InFlight reports whether p is one of the working phases.
func (p Phase) InFlight() bool {
	return p == PhaseRetrieving || p == PhaseEmbedding || p == PhaseSearching
}

// Snapshot is an immutable copy of the orchestrator state.
type Snapshot struct {
	Key        string
	Generation uint64
	Phase      Phase
	Image      *domain.StoredImage // set once retrieved; kept on later failure
	Hits       []domain.SearchHit
	Err        error
}

// Config tunes orchestrated runs.
type Config struct {
	TopK         int           // passed to the index, which clamps it
	Timeout      time.Duration // per run, covers retrieve+embed+search
	Retries      int           // extra search attempts after a failure
	RetryBackoff time.Duration
}

// Orchestrator sequences retrieve -> embed -> search for the most recently
// submitted image id.
//
// Every submission of a new key bumps a generation counter. A run applies
// its results only while its generation is current, so a late answer for a
// superseded key is dropped. Submitting the key already in flight, or the
// key whose results are cached, starts nothing.
type Orchestrator struct {
	images   ImageReader
	embedder domain.Embedder
	index    Index
	cfg      Config
	logger   *zap.Logger

	mu    sync.Mutex
	state Snapshot
	done  chan struct{} // closed when the current generation settles or is superseded
}

// NewOrchestrator creates an orchestrator in the Idle phase.
func NewOrchestrator(images ImageReader, embedder domain.Embedder, index Index, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultVectorConfig().DefaultTopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	close(done)
	return &Orchestrator{
		images:   images,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
		state:    Snapshot{Phase: PhaseIdle},
		done:     done,
	}
}

// Submit starts (or joins) a search for key. The returned channel is closed
// when the generation serving key settles or is superseded.
//
// The run does not inherit cancellation from ctx: an abandoned caller never
// cancels a request already sent to the index.
func (o *Orchestrator) Submit(ctx context.Context, key string) (<-chan struct{}, error) {
	ch, _, err := o.submit(ctx, key)
	return ch, err
}

// Search submits key and waits for the outcome. It returns
// domain.ErrSuperseded if a newer key took over, and the run's error (with
// the snapshot, which may still carry the retrieved image) if it failed.
func (o *Orchestrator) Search(ctx context.Context, key string) (Snapshot, error) {
	ch, gen, err := o.submit(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-ch:
	}

	snap := o.Snapshot()
	if snap.Generation != gen {
		return snap, fmt.Errorf("search %s: %w", key, domain.ErrSuperseded)
	}
	if snap.Phase == PhaseFailed {
		return snap, snap.Err
	}
	return snap, nil
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

func (o *Orchestrator) submit(ctx context.Context, key string) (<-chan struct{}, uint64, error) {
	if key == "" {
		return nil, 0, domain.ErrEmptyRequestKey
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Key == key && (o.state.Phase.InFlight() || o.state.Phase == PhaseDone) {
		metrics.SearchDedupTotal.Inc()
		return o.done, o.state.Generation, nil
	}

	// superseded waiters are released; their run's results will be dropped
	if o.state.Phase.InFlight() {
		close(o.done)
	}

	gen := o.state.Generation + 1
	o.state = Snapshot{Key: key, Generation: gen, Phase: PhaseRetrieving}
	o.done = make(chan struct{})

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.Timeout)
	go func() {
		defer cancel()
		o.run(runCtx, gen, key)
	}()

	return o.done, gen, nil
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, key string) {
	log := o.logger.With(zap.String("image_id", key), zap.Uint64("generation", gen))

	img, err := o.images.Get(ctx, key)
	if err != nil {
		o.fail(gen, log, fmt.Errorf("retrieve %s: %w", key, err))
		return
	}
	if img == nil {
		o.fail(gen, log, fmt.Errorf("retrieve %s: %w", key, domain.ErrImageNotFound))
		return
	}
	if !o.apply(gen, func(s *Snapshot) {
		s.Image = img
		s.Phase = PhaseEmbedding
	}) {
		o.stale(log)
		return
	}

	vec, err := o.embedder.Embed(ctx, img.Data)
	if err != nil {
		o.fail(gen, log, fmt.Errorf("embed %s: %w", key, err))
		return
	}
	if !o.apply(gen, func(s *Snapshot) { s.Phase = PhaseSearching }) {
		o.stale(log)
		return
	}

	hits, err := o.searchWithRetry(ctx, vec, log)
	if err != nil {
		o.fail(gen, log, fmt.Errorf("search %s: %w", key, err))
		return
	}
	if !o.apply(gen, func(s *Snapshot) {
		s.Hits = hits
		s.Phase = PhaseDone
	}) {
		o.stale(log)
		return
	}

	metrics.SearchRunsTotal.WithLabelValues("done").Inc()
	log.Debug("Search done", zap.Int("hits", len(hits)))
}

func (o *Orchestrator) searchWithRetry(ctx context.Context, vec domain.Vector, log *zap.Logger) ([]domain.SearchHit, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(lastErr, ctx.Err())
			case <-time.After(o.cfg.RetryBackoff * time.Duration(attempt)):
			}
			log.Info("Retrying search", zap.Int("attempt", attempt), zap.Error(lastErr))
		}

		hits, err := o.index.Search(ctx, vec, o.cfg.TopK)
		if err == nil {
			return hits, nil
		}
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// apply mutates the state only if gen is still current. Terminal phases release waiters.
func (o *Orchestrator) apply(gen uint64, mutate func(s *Snapshot)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Generation != gen {
		return false
	}
	mutate(&o.state)
	if !o.state.Phase.InFlight() {
		close(o.done)
	}
	return true
}

func (o *Orchestrator) fail(gen uint64, log *zap.Logger, err error) {
	if !o.apply(gen, func(s *Snapshot) {
		s.Phase = PhaseFailed
		s.Err = err
	}) {
		o.stale(log)
		return
	}
	metrics.SearchRunsTotal.WithLabelValues("failed").Inc()
	log.Info("Search failed", zap.Error(err))
}

func (o *Orchestrator) stale(log *zap.Logger) {
	metrics.SearchRunsTotal.WithLabelValues("stale").Inc()
	log.Debug("Dropping result of superseded search")
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	if s.Hits != nil {
		out.Hits = make([]domain.SearchHit, len(s.Hits))
		copy(out.Hits, s.Hits)
	}
	return out
}
