package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errUpstream = errors.New("upstream")

func instant(p Policy) Policy {
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := instant(Policy{Attempts: 3}).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errUpstream
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ShouldRetryStopsEarly(t *testing.T) {
	calls := 0
	p := instant(Policy{Attempts: 5, ShouldRetry: func(error) bool { return false }})
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errUpstream
	})

	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, 1, calls)
}

func TestDo_ReturnsLastErrorAfterAttempts(t *testing.T) {
	var retries []int
	p := instant(Policy{
		Attempts: 2,
		Base:     time.Second,
		OnRetry:  func(attempt int, err error, delay time.Duration) { retries = append(retries, attempt) },
	})

	err := p.Do(context.Background(), func(ctx context.Context) error { return errUpstream })

	assert.Equal(t, errUpstream, err)
	assert.Equal(t, []int{1}, retries)
}

func TestDo_ZeroPolicyCallsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errUpstream
	})

	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	first := make(chan struct{})
	p := Policy{Attempts: 5, Base: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(ctx context.Context) error {
			calls++
			if calls == 1 {
				close(first)
			}
			return errUpstream
		})
	}()
	<-first
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errUpstream)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do kept waiting after cancel")
	}
}

func TestDelay_DoublesAndCaps(t *testing.T) {
	p := Policy{Base: time.Second, Max: 3 * time.Second}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 3*time.Second, p.Delay(5))
}

func TestDelay_JitterStaysInBand(t *testing.T) {
	p := Policy{Base: time.Second, Jitter: 0.2}
	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}
