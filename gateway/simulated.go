package gateway

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SimulatedOptions contains the configuration for the simulated gateway
type SimulatedOptions struct {
	Logger *zap.Logger
	// ChargeSuccessRate and RefundSuccessRate are percentages in [0, 100].
	// Defaults: 95 and 98.
	ChargeSuccessRate int
	RefundSuccessRate int
	// MinLatency/MaxLatency bound the simulated processor round trip.
	// Defaults: 100ms-300ms.
	MinLatency time.Duration
	MaxLatency time.Duration
}

// Simulated is a stand-in payment processor. It succeeds or declines at a
// configurable rate after a bounded simulated delay, and honors context
// cancellation like a real network client would.
type Simulated struct {
	SimulatedOptions
	mu  sync.Mutex
	rng *rand.Rand
}

var _ Client = &Simulated{}

// NewSimulated returns a simulated gateway Client
func NewSimulated(option SimulatedOptions) (*Simulated, error) {
	if option.Logger == nil {
		option.Logger = zap.NewNop()
	}
	if option.ChargeSuccessRate <= 0 || option.ChargeSuccessRate > 100 {
		option.ChargeSuccessRate = 95
	}
	if option.RefundSuccessRate <= 0 || option.RefundSuccessRate > 100 {
		option.RefundSuccessRate = 98
	}
	if option.MinLatency <= 0 {
		option.MinLatency = 100 * time.Millisecond
	}
	if option.MaxLatency < option.MinLatency {
		option.MaxLatency = option.MinLatency + 200*time.Millisecond
	}
	return &Simulated{
		SimulatedOptions: option,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Name implements Client
func (s *Simulated) Name() string {
	return "simulated"
}

// Charge implements Client
func (s *Simulated) Charge(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*ChargeResult, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return nil, err
	}
	if !s.roll(s.ChargeSuccessRate) {
		s.Logger.Info("Simulated charge declined",
			zap.String("Reference", reference),
		)
		return &ChargeResult{
			Success:       false,
			FailureReason: "Payment declined by bank",
		}, nil
	}
	paymentID := "pay_" + shortHex(14)
	s.Logger.Info("Simulated charge captured",
		zap.String("Reference", reference),
		zap.String("PaymentID", paymentID),
	)
	return &ChargeResult{
		Success:   true,
		PaymentID: paymentID,
	}, nil
}

// Refund implements Client
func (s *Simulated) Refund(ctx context.Context, externalPaymentID string, amount decimal.Decimal) (*RefundResult, error) {
	if err := s.simulateRoundTrip(ctx); err != nil {
		return nil, err
	}
	if !s.roll(s.RefundSuccessRate) {
		return &RefundResult{
			Success:       false,
			FailureReason: "Refund processing failed",
		}, nil
	}
	return &RefundResult{
		Success:  true,
		RefundID: "rfnd_" + shortHex(14),
	}, nil
}

func (s *Simulated) roll(rate int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(100) < rate
}

func (s *Simulated) simulateRoundTrip(ctx context.Context) error {
	s.mu.Lock()
	jitter := s.MaxLatency - s.MinLatency
	delay := s.MinLatency
	if jitter > 0 {
		delay += time.Duration(s.rng.Int63n(int64(jitter)))
	}
	s.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shortHex(n int) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}
