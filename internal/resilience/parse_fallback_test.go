package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/velesk/smetka/pkg/provider/parse"
	parsemock "github.com/velesk/smetka/pkg/provider/parse/mock"
)

func TestParseFallback_FailoverToSecondary(t *testing.T) {
	primary := &parsemock.Provider{Err: errors.New("rate limited")}
	secondary := &parsemock.Provider{Result: &parse.Result{
		Rooms: []parse.RoomProposal{{Name: "Кухня", Area: 12}},
	}}

	f := NewParseFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("local", secondary)

	result, err := f.Parse(context.Background(), "кухня двенадцать метров", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rooms) != 1 || result.Rooms[0].Name != "Кухня" {
		t.Errorf("result = %+v, want the secondary's rooms", result.Rooms)
	}
	if len(primary.Calls()) != 1 || len(secondary.Calls()) != 1 {
		t.Errorf("calls: primary=%d secondary=%d, want 1 each",
			len(primary.Calls()), len(secondary.Calls()))
	}
}

func TestParseFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &parsemock.Provider{Err: errors.New("connection refused")}
	secondary := &parsemock.Provider{}

	f := NewParseFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	f.AddFallback("local", secondary)

	ctx := context.Background()
	for range 3 {
		if _, err := f.Parse(ctx, "кухня", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Two failures trip the breaker; the third round must not reach the primary.
	if got := len(primary.Calls()); got != 2 {
		t.Errorf("primary calls = %d, want 2", got)
	}
	if got := len(secondary.Calls()); got != 3 {
		t.Errorf("secondary calls = %d, want 3", got)
	}
}

func TestParseFallback_AllFailed(t *testing.T) {
	primary := &parsemock.Provider{Err: errors.New("down")}

	f := NewParseFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 5},
	})

	_, err := f.Parse(context.Background(), "кухня", nil)
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}
