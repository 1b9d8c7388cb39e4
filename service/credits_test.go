package service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jitenkr2030/video-shiksha/config"
	"github.com/jitenkr2030/video-shiksha/models"
)

func newTestCredits(t *testing.T, balance int64) (*Credits, *models.MemStore) {
	t.Helper()
	store := models.NewMemStore()
	if err := store.EnsureUser("u1", balance); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	return NewCredits(store, NewPricing(config.Default().Credits)), store
}

func TestDebitIsIdempotentPerJob(t *testing.T) {
	credits, _ := newTestCredits(t, 10)

	bal, err := credits.Debit("u1", models.StageTTS, "job-1", 1)
	if err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if bal != 8 {
		t.Fatalf("balance after first debit = %d, want 8", bal)
	}

	// Queue redelivery replays the same job id.
	bal, err = credits.Debit("u1", models.StageTTS, "job-1", 1)
	if err != nil {
		t.Fatalf("replayed debit: %v", err)
	}
	if bal != 8 {
		t.Fatalf("balance after replay = %d, want 8", bal)
	}

	bal, err = credits.Debit("u1", models.StageTTS, "job-2", 1)
	if err != nil {
		t.Fatalf("second job debit: %v", err)
	}
	if bal != 6 {
		t.Fatalf("balance after second job = %d, want 6", bal)
	}
}

func TestDebitInsufficientLeavesBalanceUntouched(t *testing.T) {
	credits, _ := newTestCredits(t, 1)

	_, err := credits.Debit("u1", models.StageTTS, "job-1", 1)
	if !errors.Is(err, models.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	bal, _ := credits.Balance("u1")
	if bal != 1 {
		t.Fatalf("balance = %d, want 1", bal)
	}
}

func TestDebitZeroCostStageSkipsLedger(t *testing.T) {
	credits, store := newTestCredits(t, 5)

	bal, err := credits.Debit("u1", models.StageParse, "job-1", 1)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal != 5 {
		t.Fatalf("balance = %d, want 5", bal)
	}
	if _, err := store.EntryByJob("job-1", models.StageParse); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("entry lookup err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	// Balance covers exactly two TTS debits. Ten racing stages, distinct
	// jobs: exactly two may win and the balance may never go negative.
	credits, _ := newTestCredits(t, 5)

	var wg sync.WaitGroup
	var wins int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := credits.Debit("u1", models.StageTTS, fmt.Sprintf("job-%d", n), 1)
			if err == nil {
				atomic.AddInt64(&wins, 1)
			} else if !errors.Is(err, models.ErrInsufficientCredits) {
				t.Errorf("unexpected debit error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 2 {
		t.Fatalf("successful debits = %d, want 2", wins)
	}
	bal, _ := credits.Balance("u1")
	if bal != 1 {
		t.Fatalf("balance = %d, want 1", bal)
	}
}

func TestCheckSlideChain(t *testing.T) {
	credits, _ := newTestCredits(t, 2)

	s, err := credits.CheckSlideChain("u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if s.Sufficient {
		t.Fatal("2 credits reported sufficient for a 3-credit chain")
	}
	if s.Required != 3 || s.Available != 2 {
		t.Fatalf("sufficiency = %+v, want required 3 available 2", s)
	}

	if _, err := credits.Credit("u1", 10, "top-up"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	s, _ = credits.CheckSlideChain("u1")
	if !s.Sufficient {
		t.Fatal("12 credits reported insufficient for a 3-credit chain")
	}
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	credits, _ := newTestCredits(t, 0)
	if _, err := credits.Credit("u1", 0, "nothing"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, err := credits.Credit("u1", -3, "negative"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
