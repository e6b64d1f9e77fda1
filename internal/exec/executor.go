package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bn-breakout-bot/internal/binance/rest"
	"bn-breakout-bot/internal/config"
	"bn-breakout-bot/internal/strategy"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRetriesExhausted is returned once every attempt failed transiently.
	ErrRetriesExhausted = errors.New("exchange retries exhausted")
	// ErrOrderRejected marks a single order the exchange refused.
	ErrOrderRejected = errors.New("order rejected")
)

const clientOrderPrefix = "bb"

type OrderClient interface {
	CancelOpenOrders(ctx context.Context, asset string) error
	SubmitOrder(ctx context.Context, intent strategy.OrderIntent, clientOrderID string) (string, error)
}

// Result is the outcome of one intent. Err wraps ErrOrderRejected when the
// exchange refused the order.
type Result struct {
	Intent        strategy.OrderIntent
	ClientOrderID string
	OrderID       string
	Err           error
}

func (r Result) Placed() bool {
	return r.Err == nil
}

type Executor struct {
	client      OrderClient
	retry       config.RetryConfig
	log         *zap.Logger
	isTemporary func(error) bool
	newID       func() string
}

func New(client OrderClient, retry config.RetryConfig, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		client:      client,
		retry:       retry,
		log:         log,
		isTemporary: rest.IsTemporary,
		newID:       newClientOrderID,
	}
}

// Execute applies a plan: either replaces the asset's open orders with the
// plan's orders, or submits them on top of what is resting.
func (e *Executor) Execute(ctx context.Context, plan strategy.Plan) ([]Result, error) {
	if plan.ReplaceOpenOrders {
		return e.EnsureOrders(ctx, plan.Asset, plan.Orders)
	}
	results := make([]Result, 0, len(plan.Orders))
	for _, intent := range plan.Orders {
		res, err := e.Submit(ctx, intent)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// EnsureOrders makes desired the complete set of open orders for asset by
// cancelling everything and submitting each intent. Running it twice with the
// same input leaves the same resting orders.
func (e *Executor) EnsureOrders(ctx context.Context, asset string, desired []strategy.OrderIntent) ([]Result, error) {
	err := e.Retry(ctx, "cancel open orders", func() error {
		return e.client.CancelOpenOrders(ctx, asset)
	})
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(desired))
	for _, intent := range desired {
		res, err := e.Submit(ctx, intent)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Submit places one order. A rejection is reported in the result and is not an
// error; only exhausted retries or cancellation are.
func (e *Executor) Submit(ctx context.Context, intent strategy.OrderIntent) (Result, error) {
	res := Result{Intent: intent, ClientOrderID: e.newID()}
	attempts := 0
	err := e.Retry(ctx, "submit order", func() error {
		attempts++
		orderID, err := e.client.SubmitOrder(ctx, intent, res.ClientOrderID)
		if err != nil && attempts > 1 && isDuplicateClientOrderID(err) {
			// An earlier attempt landed but its response was lost.
			e.log.Info("order already placed", zap.String("client_order_id", res.ClientOrderID))
			return nil
		}
		res.OrderID = orderID
		return err
	})
	switch {
	case err == nil:
		e.log.Info("order placed",
			zap.String("asset", intent.Asset),
			zap.Stringer("intent", intent),
			zap.String("order_id", res.OrderID),
		)
		return res, nil
	case errors.Is(err, ErrRetriesExhausted), ctx.Err() != nil:
		return res, err
	default:
		res.Err = fmt.Errorf("%w: %w", ErrOrderRejected, err)
		e.log.Warn("order rejected",
			zap.String("asset", intent.Asset),
			zap.Stringer("intent", intent),
			zap.Error(err),
		)
		return res, nil
	}
}

// Retry runs fn until it succeeds, fails permanently, or the attempt budget is
// spent. Exhausting the budget on transient errors yields ErrRetriesExhausted.
func (e *Executor) Retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	attempts := 0
	operation := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !e.isTemporary(err) {
			return backoff.Permanent(err)
		}
		e.log.Warn("transient exchange error", zap.String("op", op), zap.Int("attempt", attempts), zap.Error(err))
		return err
	}
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), e.maxRetries()), ctx))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastErr != nil && e.isTemporary(lastErr) {
		return fmt.Errorf("%s after %d attempts: %w: %w", op, attempts, ErrRetriesExhausted, lastErr)
	}
	return err
}

func (e *Executor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if e.retry.InitialInterval > 0 {
		b.InitialInterval = e.retry.InitialInterval
	}
	if e.retry.MaxInterval > 0 {
		b.MaxInterval = e.retry.MaxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (e *Executor) maxRetries() uint64 {
	if e.retry.MaxAttempts <= 1 {
		return 0
	}
	return uint64(e.retry.MaxAttempts - 1)
}

func isDuplicateClientOrderID(err error) bool {
	var apiErr *rest.APIError
	return errors.As(err, &apiErr) && apiErr.Code == -4116
}

func newClientOrderID() string {
	return clientOrderPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
