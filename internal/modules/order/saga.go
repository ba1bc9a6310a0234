package order

import (
	"context"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

const compensationTimeout = 15 * time.Second

type compensation struct {
	step string
	fn   func(context.Context) error
}

// saga collects compensating actions as the checkout pipeline progresses and
// runs them in reverse when a later step fails.
type saga struct {
	steps   []compensation
	metrics *metrics.Registry
}

func newSaga(m *metrics.Registry) *saga { return &saga{metrics: m} }

func (s *saga) push(step string, fn func(context.Context) error) {
	s.steps = append(s.steps, compensation{step: step, fn: fn})
}

// handOff replaces every pending action with a single one that owns them all.
func (s *saga) handOff(step string, fn func(context.Context) error) {
	s.steps = s.steps[:0]
	s.push(step, fn)
}

// compensate runs the pending actions newest first. It ignores the caller's
// cancellation so that a dropped request still releases its reservations.
func (s *saga) compensate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	logger := logging.FromContext(ctx)
	for i := len(s.steps) - 1; i >= 0; i-- {
		c := s.steps[i]
		err := c.fn(ctx)
		s.metrics.Compensated(c.step, err)
		if err != nil {
			logger.Error("compensation_failed", zap.String("step", c.step), zap.Error(err))
		}
	}
	s.steps = nil
}

// complete discards pending actions once the pipeline has succeeded.
func (s *saga) complete() { s.steps = nil }
