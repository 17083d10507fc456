package pairing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zhouzirui/date-night/backend/internal/config"
	"github.com/zhouzirui/date-night/backend/internal/logger"
	"github.com/zhouzirui/date-night/backend/internal/model/preference"
	"github.com/zhouzirui/date-night/backend/internal/model/session"
	"github.com/zhouzirui/date-night/backend/internal/service/notify"
)

var (
	// ErrSessionNotFound is returned for an unknown, empty or expired session id.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrGenerationFailed wraps any generator error other than a timeout.
	ErrGenerationFailed = errors.New("failed to generate plan")
	// ErrGenerationTimeout is returned when generation outlives the configured timeout.
	ErrGenerationTimeout = errors.New("plan generation timed out")
)

// DefaultGenerationTimeout bounds a generation call when Options leaves it unset.
const DefaultGenerationTimeout = 60 * time.Second

// Planner produces the itinerary text for two preference records.
type Planner interface {
	GeneratePlan(ctx context.Context, first, second preference.Preferences) (string, error)
}

// Options tune a Service.
type Options struct {
	GenerationTimeout time.Duration
	Hub               *notify.Hub
}

// Service runs the two-phase preference exchange.
type Service struct {
	store   session.Store
	planner Planner
	hub     *notify.Hub
	timeout time.Duration
	log     *logger.Logger
	group   singleflight.Group
}

// NewService wires the exchange to its store and planner. Both are required.
func NewService(store session.Store, planner Planner, log *logger.Logger, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: session store", config.ErrConfigurationMissing)
	}
	if planner == nil {
		return nil, fmt.Errorf("%w: planner", config.ErrConfigurationMissing)
	}
	if log == nil {
		log = logger.Nop()
	}

	timeout := opts.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	hub := opts.Hub
	if hub == nil {
		hub = notify.NewHub()
	}

	return &Service{
		store:   store,
		planner: planner,
		hub:     hub,
		timeout: timeout,
		log:     log.With("service", "PairingService"),
	}, nil
}

// SubmitFirst stores the first partner's preferences and returns the id to share.
func (s *Service) SubmitFirst(ctx context.Context, prefs preference.Preferences) (string, error) {
	created, err := s.store.Create(ctx, prefs)
	if err != nil {
		return "", fmt.Errorf("failed to store preferences: %w", err)
	}

	s.log.Info("session created", "session_id", created.ID)
	return created.ID, nil
}

// SubmitSecond joins the session with the partner's preferences and returns
// the plan. Once a plan is stored every later call returns it without
// generating again; concurrent calls for the same id share one generation.
//
// A caller whose ctx ends stops waiting; the generation itself keeps running
// on a detached context, bounded by the generation timeout, and its plan is
// stored for the next call.
func (s *Service) SubmitSecond(ctx context.Context, id string, partner preference.Preferences) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: id is required", ErrSessionNotFound)
	}

	detached := context.WithoutCancel(ctx)
	resultCh := s.group.DoChan(id, func() (any, error) {
		return s.complete(detached, id, partner)
	})

	select {
	case <-ctx.Done():
		s.log.Info("caller left before plan was ready", "session_id", id, "error", ctx.Err().Error())
		return "", ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			s.log.Debug("joined in-flight generation", "session_id", id)
		}
		return res.Val.(string), nil
	}
}

func (s *Service) complete(ctx context.Context, id string, partner preference.Preferences) (string, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if current.Completed() {
		s.log.Info("returning stored plan", "session_id", id)
		return current.Plan, nil
	}

	if partner.Empty() {
		s.log.Warn("partner submitted no preferences", "session_id", id)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	plan, err := s.planner.GeneratePlan(genCtx, current.Preferences, partner)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			s.log.Warn("plan generation timed out", "session_id", id, "timeout", s.timeout.String())
			return "", fmt.Errorf("%w after %s", ErrGenerationTimeout, s.timeout)
		}
		s.log.Error("plan generation failed", "session_id", id, "error", err.Error())
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	stored, err := s.store.Complete(ctx, id, partner, plan)
	if err != nil {
		return "", fmt.Errorf("failed to store plan: %w", err)
	}
	if stored.Plan != plan {
		s.log.Warn("plan already stored by another request, discarding new plan", "session_id", id)
	}

	s.hub.Publish(stored.View())
	s.log.Info("session completed", "session_id", id, "duration", time.Since(start).String())
	return stored.Plan, nil
}

// Status returns what either partner may see about a session.
func (s *Service) Status(ctx context.Context, id string) (session.View, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return session.View{}, err
	}
	return current.View(), nil
}

// Watch returns the current view plus a channel that receives the completed
// view once a plan is stored. cancel must be called when the caller stops
// watching.
func (s *Service) Watch(ctx context.Context, id string) (session.View, <-chan session.View, func(), error) {
	updates, cancel := s.hub.Subscribe(id)

	current, err := s.Status(ctx, id)
	if err != nil {
		cancel()
		return session.View{}, nil, nil, err
	}
	return current, updates, cancel, nil
}
