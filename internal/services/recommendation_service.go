package services

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/longevity/internal/realtime"
	"github.com/charlesng35/longevity/internal/recommendations"
	"github.com/charlesng35/longevity/pkg/logger"
	"github.com/charlesng35/longevity/pkg/metrics"
)

// DefaultMaxControllers bounds the number of live controllers kept in memory.
const DefaultMaxControllers = 4096

// EventRecommendationsUpdated is broadcast on the recommendations stream after each run.
const EventRecommendationsUpdated = "recommendations.updated"

// RecommendationServiceConfig wires a RecommendationService.
type RecommendationServiceConfig struct {
	Repository     recommendations.Repository
	Generators     recommendations.GeneratorFactory
	Notifier       recommendations.Notifier
	Broadcaster    Broadcaster
	Observer       recommendations.Observer
	MaxControllers int
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Clock          func() time.Time
}

// RecommendationEventPayload is the realtime payload for EventRecommendationsUpdated.
type RecommendationEventPayload struct {
	Kind     recommendations.Kind     `json:"kind"`
	Outcome  recommendations.Outcome  `json:"outcome"`
	Snapshot recommendations.Snapshot `json:"snapshot"`
}

// RecommendationService owns one controller per user and kind.
type RecommendationService struct {
	cfg         RecommendationServiceConfig
	mu          sync.Mutex
	controllers *lru.Cache[recommendations.Key, *recommendations.Controller]
	flight      singleflight.Group
	log         *zap.Logger
}

// NewRecommendationService constructs a RecommendationService.
func NewRecommendationService(cfg RecommendationServiceConfig) (*RecommendationService, error) {
	if cfg.Repository == nil {
		return nil, errors.New("recommendation service: repository is required")
	}
	if cfg.Generators == nil {
		return nil, errors.New("recommendation service: generator factory is required")
	}
	if cfg.MaxControllers <= 0 {
		cfg.MaxControllers = DefaultMaxControllers
	}

	controllers, err := lru.NewWithEvict(cfg.MaxControllers, func(_ recommendations.Key, c *recommendations.Controller) {
		c.Close()
		metrics.ActiveControllers.Dec()
	})
	if err != nil {
		return nil, err
	}

	return &RecommendationService{
		cfg:         cfg,
		controllers: controllers,
		log:         logger.WithModule("recommendations.service"),
	}, nil
}

func (s *RecommendationService) controller(userID string, kind recommendations.Kind) (*recommendations.Controller, error) {
	key := recommendations.Key{UserID: userID, Kind: kind}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.controllers.Get(key); ok {
		return c, nil
	}

	opts := []recommendations.ControllerOption{
		recommendations.WithNotifier(s.cfg.Notifier),
		recommendations.WithObserver(s.cfg.Observer),
		recommendations.WithClock(s.cfg.Clock),
	}
	if s.cfg.RetryAttempts > 1 {
		opts = append(opts, recommendations.WithRetry(s.cfg.RetryAttempts, s.cfg.RetryBaseDelay))
	}

	c, err := recommendations.NewController(key, s.cfg.Repository, opts...)
	if err != nil {
		return nil, err
	}
	s.controllers.Add(key, c)
	metrics.ActiveControllers.Inc()
	return c, nil
}

// Reconcile checks the stored recommendations of a user against source and regenerates
// them when stale.
func (s *RecommendationService) Reconcile(ctx context.Context, userID string, kind recommendations.Kind, source any) (recommendations.Result, recommendations.Snapshot, error) {
	c, err := s.controller(userID, kind)
	if err != nil {
		return recommendations.Result{}, recommendations.Snapshot{}, err
	}

	result, err := c.Reconcile(ensureContext(ctx), source, s.cfg.Generators(kind, source))
	snap := view(result, c.Snapshot())
	s.publish(c.Key(), result.Outcome, snap)
	return result, snap, err
}

// Regenerate forces a new generation. A non-nil source replaces the remembered input first.
// Concurrent calls for the same key and input share a single run, which outlives the
// cancellation of any one caller.
func (s *RecommendationService) Regenerate(ctx context.Context, userID string, kind recommendations.Kind, source any) (recommendations.Result, recommendations.Snapshot, error) {
	ctx = ensureContext(ctx)
	c, err := s.controller(userID, kind)
	if err != nil {
		return recommendations.Result{}, recommendations.Snapshot{}, err
	}

	var gen recommendations.Generator
	if source != nil {
		gen = s.cfg.Generators(kind, source)
	} else if source, gen, err = c.Bound(); err != nil {
		return recommendations.Result{}, c.Snapshot(), err
	}

	flightKey := c.Key().String() + ":" + recommendations.Fingerprint(source)
	runCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(flightKey, func() (interface{}, error) {
		result, err := c.RegenerateWith(runCtx, source, gen)
		snap := view(result, c.Snapshot())
		s.publish(c.Key(), result.Outcome, snap)
		return regeneration{result: result, snap: snap}, err
	})

	select {
	case <-ctx.Done():
		return recommendations.Result{Outcome: recommendations.OutcomeCanceled}, c.Snapshot(), ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.log.Debug("regeneration shared", zap.String("user_id", userID), zap.String("kind", string(kind)))
		}
		out, _ := res.Val.(regeneration)
		return out.result, out.snap, res.Err
	}
}

type regeneration struct {
	result recommendations.Result
	snap   recommendations.Snapshot
}

// Get returns the current view. A controller that has never run is seeded from the
// persisted row so the last known payload is visible without generating.
func (s *RecommendationService) Get(ctx context.Context, userID string, kind recommendations.Kind) (recommendations.Snapshot, error) {
	c, err := s.controller(userID, kind)
	if err != nil {
		return recommendations.Snapshot{}, err
	}

	if !c.Started() {
		entry, err := s.cfg.Repository.Load(ensureContext(ctx), c.Key())
		if err != nil {
			s.log.Warn("failed to load stored recommendations", zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
		} else if entry != nil {
			c.Seed(entry)
		}
	}
	return c.Snapshot(), nil
}

// Forget closes and drops the controller of a user and kind.
func (s *RecommendationService) Forget(userID string, kind recommendations.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers.Remove(recommendations.Key{UserID: userID, Kind: kind})
}

// Len reports the number of live controllers.
func (s *RecommendationService) Len() int {
	return s.controllers.Len()
}

// Close closes every controller.
func (s *RecommendationService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers.Purge()
}

// view overlays a fresh but unsaved payload on snap so callers still receive it.
func view(result recommendations.Result, snap recommendations.Snapshot) recommendations.Snapshot {
	if result.Outcome != recommendations.OutcomeUnpersisted {
		return snap
	}
	snap.Items = result.Items
	if snap.Items == nil {
		snap.Items = []recommendations.Item{}
	}
	snap.SourceHash = result.SourceHash
	return snap
}

func (s *RecommendationService) publish(key recommendations.Key, outcome recommendations.Outcome, snap recommendations.Snapshot) {
	if s.cfg.Broadcaster == nil {
		return
	}
	switch outcome {
	case "", recommendations.OutcomeSkipped, recommendations.OutcomeCanceled:
		return
	}
	s.cfg.Broadcaster.BroadcastToUser(realtime.StreamRecommendations, key.UserID, realtime.Message{
		Event: EventRecommendationsUpdated,
		Data: RecommendationEventPayload{
			Kind:     key.Kind,
			Outcome:  outcome,
			Snapshot: snap,
		},
	})
}
