// Package service performs the reset / power trigger and journals every attempt.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/backend"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/config"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/repository"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
)

const (
	SuccessMessage        = "Power trigger activated! ESP will respond within 15 seconds."
	FailurePrefix         = "Error: "
	TransportErrorMessage = "An error occurred while triggering power."
	EmptyCredentials      = "Credentials cannot be empty!"
)

var (
	// ErrEmptyCredentials is returned before any backend call when a credential is required
	// but blank.
	ErrEmptyCredentials = errors.New("credentials cannot be empty")
	// ErrCancelled means the operator dismissed the credential prompt.
	ErrCancelled = errors.New("control action cancelled")
)

type Resetter interface {
	TriggerReset(ctx context.Context, credentials *string) (backend.ResetResult, error)
}

// Observer is told about every journaled action, e.g. to publish it on MQTT.
type Observer interface {
	ActionRecorded(ctx context.Context, a types.Action) error
}

type Service struct {
	resetter Resetter
	repo     repository.ActionRepository
	mode     string
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu        sync.RWMutex
	observers []Observer
}

// NewService returns a control service. repo may be nil to skip journaling (CLI without a
// database). mode is config.ControlModeCredentials or config.ControlModeOpen.
func NewService(resetter Resetter, repo repository.ActionRepository, mode string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if mode != config.ControlModeOpen {
		mode = config.ControlModeCredentials
	}
	return &Service{
		resetter: resetter,
		repo:     repo,
		mode:     mode,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *Service) Mode() string { return s.mode }

func (s *Service) CredentialsRequired() bool { return s.mode == config.ControlModeCredentials }

func (s *Service) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Trigger sends the reset request. Credentials are trimmed; in credentials mode a blank one fails with
// ErrEmptyCredentials and nothing is sent; in open mode credentials are ignored and the
// request carries no body. Backend rejections and transport failures are not errors: they are
// reported through the returned action's Outcome and Message. Trigger never retries.
func (s *Service) Trigger(ctx context.Context, credentials string, source string) (types.Action, error) {
	var body *string
	if s.CredentialsRequired() {
		credentials = strings.TrimSpace(credentials)
		if credentials == "" {
			return types.Action{}, ErrEmptyCredentials
		}
		body = &credentials
	}

	action := types.Action{
		ID:     s.newID(),
		Time:   s.now().UTC(),
		Source: source,
		Mode:   s.mode,
	}

	res, err := s.resetter.TriggerReset(ctx, body)
	var apiErr *backend.APIError
	switch {
	case err == nil:
		action.Outcome = types.OutcomeSuccess
		action.HTTPStatus = res.StatusCode
		action.Message = SuccessMessage
	case errors.As(err, &apiErr):
		action.Outcome = types.OutcomeFailure
		action.HTTPStatus = apiErr.StatusCode
		action.Message = FailurePrefix + apiErr.Message
	default:
		action.Outcome = types.OutcomeError
		action.HTTPStatus = res.StatusCode
		action.Message = TransportErrorMessage
	}

	s.logger.Info("control action",
		"id", action.ID,
		"source", action.Source,
		"mode", action.Mode,
		"outcome", action.Outcome,
		"http_status", action.HTTPStatus,
	)
	if err != nil {
		s.logger.Error("reset request failed", "id", action.ID, "error", err)
	}

	s.record(ctx, action)
	return action, nil
}

// Recent lists the newest journaled actions.
func (s *Service) Recent(ctx context.Context, limit int) ([]types.Action, error) {
	if s.repo == nil {
		return []types.Action{}, nil
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) record(ctx context.Context, a types.Action) {
	// journal writes outlive a cancelled request
	ctx = context.WithoutCancel(ctx)
	if s.repo != nil {
		if err := s.repo.InsertAction(ctx, a); err != nil {
			s.logger.Error("journal control action failed", "id", a.ID, "error", err)
		}
	}

	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()
	for _, o := range observers {
		if err := o.ActionRecorded(ctx, a); err != nil {
			s.logger.Warn("control action observer failed", "id", a.ID, "error", err)
		}
	}
}
