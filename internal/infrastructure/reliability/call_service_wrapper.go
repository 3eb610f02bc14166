package reliability

import (
	"context"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/circuitbreaker"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/retry"

	"go.uber.org/zap"
)

// CallServiceWrapper wraps a CallService with retry logic and a circuit
// breaker, shielding handlers from a flaky storage backend.
type CallServiceWrapper struct {
	service ports.CallService
	logger  *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewCallServiceWrapper creates a new wrapper with retry and circuit breaker
func NewCallServiceWrapper(
	service ports.CallService,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *CallServiceWrapper {
	wrapper := &CallServiceWrapper{
		service:        service,
		logger:         logger,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New(cbConfig),
	}

	wrapper.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return wrapper
}

var _ ports.CallService = (*CallServiceWrapper)(nil)

func (w *CallServiceWrapper) CreateCall(ctx context.Context, initiator domain.ParticipantID, callType domain.CallType) (*domain.CallSession, error) {
	if !w.retryConfig.Enabled {
		return w.service.CreateCall(ctx, initiator, callType)
	}

	return retry.RetryWithResult(ctx, w.retryConfig, func() (*domain.CallSession, error) {
		var call *domain.CallSession
		err := w.circuitBreaker.Execute(ctx, func() error {
			var execErr error
			call, execErr = w.service.CreateCall(ctx, initiator, callType)
			return execErr
		})
		return call, err
	})
}

func (w *CallServiceWrapper) GetCall(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	if !w.retryConfig.Enabled {
		return w.service.GetCall(ctx, id)
	}

	return retry.RetryWithResult(ctx, w.retryConfig, func() (*domain.CallSession, error) {
		var call *domain.CallSession
		err := w.circuitBreaker.Execute(ctx, func() error {
			var execErr error
			call, execErr = w.service.GetCall(ctx, id)
			return execErr
		})
		return call, err
	})
}

func (w *CallServiceWrapper) JoinCall(ctx context.Context, id domain.CallID, participant domain.Participant) error {
	if !w.retryConfig.Enabled {
		return w.service.JoinCall(ctx, id, participant)
	}

	return retry.Retry(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			return w.service.JoinCall(ctx, id, participant)
		})
	})
}

func (w *CallServiceWrapper) LeaveCall(ctx context.Context, id domain.CallID, participantID domain.ParticipantID) error {
	if !w.retryConfig.Enabled {
		return w.service.LeaveCall(ctx, id, participantID)
	}

	return retry.Retry(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			return w.service.LeaveCall(ctx, id, participantID)
		})
	})
}

func (w *CallServiceWrapper) EndCall(ctx context.Context, id domain.CallID) error {
	if !w.retryConfig.Enabled {
		return w.service.EndCall(ctx, id)
	}

	return retry.Retry(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			return w.service.EndCall(ctx, id)
		})
	})
}

func (w *CallServiceWrapper) ListActiveCalls(ctx context.Context) ([]*domain.CallSession, error) {
	if !w.retryConfig.Enabled {
		return w.service.ListActiveCalls(ctx)
	}

	return retry.RetryWithResult(ctx, w.retryConfig, func() ([]*domain.CallSession, error) {
		var calls []*domain.CallSession
		err := w.circuitBreaker.Execute(ctx, func() error {
			var execErr error
			calls, execErr = w.service.ListActiveCalls(ctx)
			return execErr
		})
		return calls, err
	})
}

// BreakerState exposes the current circuit breaker state for health checks.
func (w *CallServiceWrapper) BreakerState() circuitbreaker.State {
	return w.circuitBreaker.GetState()
}
