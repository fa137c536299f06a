package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"n8n-gportal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quick(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Backoff: BackoffFixed}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	var retried []int
	r := New(quick(5)).
		If(Always).
		OnRetry(func(attempt int, err error, delay time.Duration) {
			retried = append(retried, attempt)
		})

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return stderrors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := New(quick(5)).Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errors.NewValidationError("bad input")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.CodeInvalidInput, appErr.Code)
	assert.Equal(t, 1, appErr.Context["retry_attempts"])
}

func TestDoWrapsPlainErrorWhenAttemptsRunOut(t *testing.T) {
	calls := 0
	err := New(quick(2)).Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return stderrors.New("dial tcp: i/o timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "gave up after 2 attempts")
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := New(Policy{}).Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(DefaultPolicy()).Do(ctx, func(ctx context.Context, attempt int) error {
		t.Fatal("must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValue(t *testing.T) {
	v, err := Value(context.Background(), New(quick(3)).If(Always), func(ctx context.Context, attempt int) (string, error) {
		if attempt == 1 {
			return "", stderrors.New("boom")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = Value(context.Background(), New(quick(1)), func(ctx context.Context, attempt int) (int, error) {
		return 7, stderrors.New("syntax error")
	})
	require.Error(t, err)
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Factor: 2}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(10))

	p.Backoff = BackoffLinear
	assert.Equal(t, 300*time.Millisecond, p.Delay(3))

	p.Backoff = BackoffFixed
	p.Jitter = 0.5
	for range 20 {
		d := p.Delay(4)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestTransient(t *testing.T) {
	assert.False(t, Transient(nil, 1))
	assert.True(t, Transient(stderrors.New("dial tcp: Connection refused"), 1))
	assert.False(t, Transient(stderrors.New("syntax error"), 1))
	assert.True(t, Transient(errors.New(errors.ErrorTypeNetwork, errors.CodeTransport, "down"), 1))
	assert.False(t, Transient(errors.NewNotFoundError("gone"), 1))
}
