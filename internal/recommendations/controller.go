package recommendations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/longevity/pkg/logger"
)

// State is the lifecycle phase of a Controller.
type State string

const (
	StateIdle         State = "idle"
	StateLoadingCache State = "loading-cache"
	StateGenerating   State = "generating"
	StateReady        State = "ready"
	StateError        State = "error"
)

// Outcome summarises a single Reconcile or Regenerate run.
type Outcome string

const (
	// OutcomeSkipped means the source data was empty and nothing ran.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeCached means the stored payload matched the source fingerprint.
	OutcomeCached Outcome = "cached"
	// OutcomeGenerated means a fresh payload was generated and persisted.
	OutcomeGenerated Outcome = "generated"
	// OutcomeUnpersisted means a fresh payload was generated but the save failed.
	OutcomeUnpersisted Outcome = "unpersisted"
	// OutcomeFailed means the generator failed or returned a malformed result.
	OutcomeFailed Outcome = "failed"
	// OutcomeCanceled means the run was abandoned because its context ended.
	OutcomeCanceled Outcome = "canceled"
)

// Result describes what a run produced. For OutcomeUnpersisted, Items holds the fresh
// payload even though the controller's own state kept the previous one.
type Result struct {
	Outcome    Outcome
	Items      []Item
	SourceHash string
	Persisted  bool
	UpdatedAt  *time.Time
	Err        error
}

// Snapshot is the consumer view of a Controller.
type Snapshot struct {
	Key          Key        `json:"-"`
	State        State      `json:"state"`
	Items        []Item     `json:"items"`
	IsLoading    bool       `json:"is_loading"`
	IsGenerating bool       `json:"is_generating"`
	LastUpdated  *time.Time `json:"last_updated"`
	SourceHash   string     `json:"source_hash,omitempty"`
	Err          string     `json:"error,omitempty"`
}

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
}

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

// WithNotifier sets the outcome notifier.
func WithNotifier(n Notifier) ControllerOption {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger overrides the controller logger.
func WithLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver installs an instrumentation hook.
func WithObserver(o Observer) ControllerOption {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithRetry retries failing generator calls up to attempts times in total, doubling
// baseDelay between tries. Malformed results are not retried.
func WithRetry(attempts int, baseDelay time.Duration) ControllerOption {
	return func(c *Controller) {
		if attempts < 1 {
			attempts = 1
		}
		if baseDelay < 0 {
			baseDelay = 0
		}
		c.retry = retryPolicy{attempts: attempts, baseDelay: baseDelay}
	}
}

// Controller decides, per user and kind, whether the stored recommendations are still valid
// for the current source data and regenerates them when they are not.
type Controller struct {
	key      Key
	repo     Repository
	notifier Notifier
	observer Observer
	now      func() time.Time
	log      *zap.Logger
	retry    retryPolicy

	life   context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	items       []Item
	hash        string
	lastUpdated *time.Time
	lastErr     error
	generation  uint64
	started     bool
	closed      bool
	source      any
	gen         Generator
	hasSource   bool
}

// NewController constructs a Controller for key backed by repo.
func NewController(key Key, repo Repository, opts ...ControllerOption) (*Controller, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, errors.New("recommendations: repository is required")
	}

	life, cancel := context.WithCancel(context.Background())
	c := &Controller{
		key:      key,
		repo:     repo,
		notifier: nopNotifier{},
		observer: nopObserver{},
		now:      time.Now,
		log:      logger.WithModule("recommendations"),
		retry:    retryPolicy{attempts: 1},
		life:     life,
		cancel:   cancel,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("user_id", key.UserID), zap.String("kind", string(key.Kind)))
	return c, nil
}

// Key returns the key the controller manages.
func (c *Controller) Key() Key {
	return c.key
}

// Reconcile checks the stored payload against source and regenerates when the fingerprint
// differs or nothing is stored. Empty source data keeps the controller idle.
func (c *Controller) Reconcile(ctx context.Context, source any, gen Generator) (Result, error) {
	if gen == nil {
		return Result{}, ErrNilGenerator
	}
	if err := c.Bind(source, gen); err != nil {
		return Result{}, err
	}
	return c.run(ctx, source, gen, false)
}

// Regenerate forces a generator run for the last reconciled source, bypassing the
// fingerprint check.
func (c *Controller) Regenerate(ctx context.Context) (Result, error) {
	source, gen, err := c.Bound()
	if err != nil {
		return Result{}, err
	}
	return c.run(ctx, source, gen, true)
}

// RegenerateWith remembers source and gen and forces a run for exactly that input, even if
// another caller binds a different input while it executes.
func (c *Controller) RegenerateWith(ctx context.Context, source any, gen Generator) (Result, error) {
	if err := c.Bind(source, gen); err != nil {
		return Result{}, err
	}
	return c.run(ctx, source, gen, true)
}

// Bound returns the remembered source and generator.
func (c *Controller) Bound() (any, Generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}
	if !c.hasSource {
		return nil, nil, ErrNoSource
	}
	return c.source, c.gen, nil
}

// Bind remembers source and gen for a later Regenerate without running anything.
func (c *Controller) Bind(source any, gen Generator) error {
	if gen == nil {
		return ErrNilGenerator
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.source, c.gen, c.hasSource = source, gen, true
	return nil
}

// Seed surfaces a previously persisted entry without running the generator. It only
// applies to a controller that has never run and reports whether it did.
func (c *Controller) Seed(entry *Entry) bool {
	if entry == nil || entry.Kind != c.key.Kind || entry.UserID != c.key.UserID {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.started {
		return false
	}
	c.started = true
	at := entry.UpdatedAt
	c.items = cloneItems(entry.Items)
	c.hash = entry.SourceHash
	c.lastUpdated = &at
	c.state = StateReady
	return true
}

// Started reports whether the controller has run or been seeded.
func (c *Controller) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Snapshot returns the current consumer view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := cloneItems(c.items)
	if items == nil {
		items = []Item{}
	}
	snap := Snapshot{
		Key:          c.key,
		State:        c.state,
		Items:        items,
		IsLoading:    c.state == StateLoadingCache,
		IsGenerating: c.state == StateGenerating,
		SourceHash:   c.hash,
	}
	if c.lastUpdated != nil {
		at := *c.lastUpdated
		snap.LastUpdated = &at
	}
	if c.lastErr != nil {
		snap.Err = c.lastErr.Error()
	}
	return snap
}

// Close cancels in-flight runs. Results arriving afterwards are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// begin claims a new generation and moves the controller into next.
func (c *Controller) begin(next State) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, false
	}
	c.generation++
	c.started = true
	c.state = next
	return c.generation, true
}

// commit applies fn to the controller state if run is still the latest one.
func (c *Controller) commit(run uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || run != c.generation {
		return false
	}
	fn()
	return true
}

func (c *Controller) run(parent context.Context, source any, gen Generator, force bool) (Result, error) {
	if parent == nil {
		parent = context.Background()
	}

	if IsEmptySource(source) {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return Result{}, ErrClosed
		}
		// Supersede any run still in flight for the previous input.
		c.generation++
		c.state = StateIdle
		c.mu.Unlock()
		c.observer.ReconcileFinished(c.key.Kind, OutcomeSkipped)
		return Result{Outcome: OutcomeSkipped, SourceHash: EmptyFingerprint}, nil
	}

	initial := StateLoadingCache
	if force {
		initial = StateGenerating
	}
	run, ok := c.begin(initial)
	if !ok {
		return Result{}, ErrClosed
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(c.life, cancel)
	defer stop()

	hash := Fingerprint(source)
	result, err := c.execute(ctx, run, hash, gen, force)
	c.observer.ReconcileFinished(c.key.Kind, result.Outcome)
	return result, err
}

func (c *Controller) execute(ctx context.Context, run uint64, hash string, gen Generator, force bool) (Result, error) {
	if !force {
		entry, err := c.repo.Load(ctx, c.key)
		if err != nil {
			if ctx.Err() != nil {
				return c.abandon(run, ctx.Err())
			}
			c.log.Warn("cache read failed, regenerating", zap.Error(err))
			c.observer.CacheLookup(c.key.Kind, LookupError)
			entry = nil
		}

		switch {
		case entry == nil && err == nil:
			c.observer.CacheLookup(c.key.Kind, LookupMiss)
		case entry != nil && entry.SourceHash == hash && !IsFallbackFingerprint(hash):
			c.observer.CacheLookup(c.key.Kind, LookupHit)
			return c.surfaceCached(run, entry), nil
		case entry != nil:
			c.observer.CacheLookup(c.key.Kind, LookupStale)
			c.log.Debug("source fingerprint changed", zap.String("stored_hash", entry.SourceHash), zap.String("hash", hash))
		}

		c.commit(run, func() { c.state = StateGenerating })
	}

	started := time.Now()
	items, err := c.generate(ctx, gen)
	c.observer.GenerationFinished(c.key.Kind, time.Since(started), err)
	if err != nil {
		if ctx.Err() != nil {
			return c.abandon(run, ctx.Err())
		}
		return c.fail(ctx, run, err)
	}

	at := c.now().UTC()
	if err := c.repo.Save(ctx, c.key, items, hash, at); err != nil {
		if ctx.Err() != nil {
			return c.abandon(run, ctx.Err())
		}
		return c.unpersisted(ctx, run, items, hash, err)
	}

	c.commit(run, func() {
		c.items = cloneItems(items)
		c.hash = hash
		c.lastUpdated = &at
		c.lastErr = nil
		c.state = StateReady
	})
	c.log.Info("recommendations generated", zap.Int("count", len(items)), zap.String("hash", hash))
	c.notifier.Succeeded(context.WithoutCancel(ctx), c.key, len(items))

	updated := at
	return Result{
		Outcome:    OutcomeGenerated,
		Items:      cloneItems(items),
		SourceHash: hash,
		Persisted:  true,
		UpdatedAt:  &updated,
	}, nil
}

func (c *Controller) surfaceCached(run uint64, entry *Entry) Result {
	at := entry.UpdatedAt
	c.commit(run, func() {
		c.items = cloneItems(entry.Items)
		c.hash = entry.SourceHash
		c.lastUpdated = &at
		c.lastErr = nil
		c.state = StateReady
	})
	updated := at
	return Result{
		Outcome:    OutcomeCached,
		Items:      cloneItems(entry.Items),
		SourceHash: entry.SourceHash,
		Persisted:  true,
		UpdatedAt:  &updated,
	}
}

// generate calls gen applying the retry policy. A nil list is treated as malformed.
func (c *Controller) generate(ctx context.Context, gen Generator) ([]Item, error) {
	attempts := c.retry.attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := c.retry.baseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		items, err := gen.Generate(ctx)
		if err == nil {
			if items == nil {
				return nil, ErrMalformedResult
			}
			return items, nil
		}
		if errors.Is(err, ErrMalformedResult) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		c.log.Warn("generator failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
	}
	return nil, lastErr
}

func (c *Controller) fail(ctx context.Context, run uint64, cause error) (Result, error) {
	err := cause
	if !errors.Is(cause, ErrMalformedResult) {
		err = fmt.Errorf("%w: %w", ErrGenerationFailed, cause)
	}

	var previous []Item
	c.commit(run, func() {
		c.lastErr = err
		c.state = StateError
	})
	c.mu.Lock()
	previous = cloneItems(c.items)
	c.mu.Unlock()

	c.log.Error("recommendation generation failed", zap.Error(cause))
	c.notifier.Failed(context.WithoutCancel(ctx), c.key, err)
	return Result{Outcome: OutcomeFailed, Items: previous, Err: err}, err
}

func (c *Controller) unpersisted(ctx context.Context, run uint64, items []Item, hash string, cause error) (Result, error) {
	err := fmt.Errorf("%w: %w", ErrPersistFailed, cause)
	c.commit(run, func() {
		c.lastErr = err
		c.state = StateError
	})
	c.log.Error("recommendations generated but not persisted", zap.Int("count", len(items)), zap.Error(cause))
	c.notifier.Failed(context.WithoutCancel(ctx), c.key, err)
	return Result{
		Outcome:    OutcomeUnpersisted,
		Items:      cloneItems(items),
		SourceHash: hash,
		Persisted:  false,
		Err:        err,
	}, nil
}

// abandon rolls the phase back after cancellation without touching the payload.
func (c *Controller) abandon(run uint64, cause error) (Result, error) {
	c.commit(run, func() {
		if c.items != nil || c.lastUpdated != nil {
			c.state = StateReady
		} else {
			c.state = StateIdle
		}
	})
	return Result{Outcome: OutcomeCanceled}, cause
}
