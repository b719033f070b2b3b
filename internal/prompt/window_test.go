package prompt

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"chatrelay-backend/internal/models"
)

func makeHistory(n int) []models.Exchange {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	history := make([]models.Exchange, n)
	for i := 0; i < n; i++ {
		history[i] = models.Exchange{
			Prompt:    fmt.Sprintf("q%d", i),
			Response:  fmt.Sprintf("a%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return history
}

func reversed(in []models.Exchange) []models.Exchange {
	out := make([]models.Exchange, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	return out
}

func TestBuildContext_EmptyHistory(t *testing.T) {
	got := BuildContext("hi", nil, DefaultWindowSize)
	if got != "User: hi" {
		t.Fatalf("expected %q, got %q", "User: hi", got)
	}
}

func TestBuildContext_Format(t *testing.T) {
	got := BuildContext("next", makeHistory(2), DefaultWindowSize)
	want := "User: q0\nAI: a0\n\nUser: q1\nAI: a1\n\nUser: next"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildContext_OrdersOldestFirstRegardlessOfInput(t *testing.T) {
	history := makeHistory(3)

	fromAsc := BuildContext("p", history, DefaultWindowSize)
	fromDesc := BuildContext("p", reversed(history), DefaultWindowSize)

	if fromAsc != fromDesc {
		t.Fatalf("expected identical output for any input order\nasc:  %q\ndesc: %q", fromAsc, fromDesc)
	}
	if strings.Index(fromAsc, "q0") > strings.Index(fromAsc, "q2") {
		t.Fatalf("expected oldest exchange first, got %q", fromAsc)
	}
}

func TestBuildContext_KeepsLastN(t *testing.T) {
	for n := 0; n <= 12; n++ {
		for _, size := range []int{0, 1, 5, 10} {
			t.Run(fmt.Sprintf("history=%d/size=%d", n, size), func(t *testing.T) {
				history := makeHistory(n)
				got := BuildContext("new", reversed(history), size)

				kept := strings.Count(got, "\nAI: ")
				want := n
				if want > size {
					want = size
				}
				if kept != want {
					t.Fatalf("expected %d exchanges in window, got %d: %q", want, kept, got)
				}
				if !strings.HasSuffix(got, "User: new") {
					t.Fatalf("expected new prompt last, got %q", got)
				}
				if want > 0 {
					first := fmt.Sprintf("User: q%d\n", n-want)
					if !strings.HasPrefix(got, first) {
						t.Fatalf("expected window to start with %q, got %q", first, got)
					}
				}
			})
		}
	}
}

func TestBuildContext_DoesNotMutateInput(t *testing.T) {
	history := reversed(makeHistory(4))
	firstBefore := history[0].Prompt

	BuildContext("p", history, 2)

	if history[0].Prompt != firstBefore {
		t.Fatalf("expected caller slice untouched, first prompt became %q", history[0].Prompt)
	}
}
