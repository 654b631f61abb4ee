package reliability

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestScoreNeutralForUnknownDriver(t *testing.T) {
	tr := NewTracker()
	if got := tr.Score("drv_unknown"); got != neutralScore {
		t.Fatalf("expected neutral score %v, got %v", neutralScore, got)
	}
}

func TestScoreReflectsAcceptRate(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 4; i++ {
		tr.RecordOffered("drv_1")
	}
	tr.RecordAccepted("drv_1")
	tr.RecordAccepted("drv_1")
	tr.RecordDeclined("drv_1")
	tr.RecordExpired("drv_1")

	if got := tr.Score("drv_1"); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestLateResponsesLowerScore(t *testing.T) {
	tr := NewTracker()
	tr.RecordOffered("drv_1")
	tr.RecordOffered("drv_1")
	tr.RecordAccepted("drv_1")
	tr.RecordExpired("drv_1")

	before := tr.Score("drv_1")
	if before != 0.5 {
		t.Fatalf("expected 0.5 before late response, got %v", before)
	}

	tr.RecordLate("drv_1")
	if got := tr.Score("drv_1"); got != 0.25 {
		t.Fatalf("expected 0.25 after late response, got %v", got)
	}

	// lateness never pushes the score below zero
	tr.RecordLate("drv_1")
	tr.RecordLate("drv_1")
	if got := tr.Score("drv_1"); got != 0 {
		t.Fatalf("expected floor of 0, got %v", got)
	}
}

func TestIdleSince(t *testing.T) {
	tr := NewTracker()
	now := time.Now().UTC()
	maxIdle := time.Hour

	if got := tr.IdleSince("drv_new", now, maxIdle); got != maxIdle {
		t.Fatalf("unknown driver should report max idle, got %v", got)
	}

	tr.RecordCompleted("drv_1", now.Add(-10*time.Minute))
	if got := tr.IdleSince("drv_1", now, maxIdle); got != 10*time.Minute {
		t.Fatalf("expected 10m idle, got %v", got)
	}

	tr.RecordCompleted("drv_2", now.Add(-3*time.Hour))
	if got := tr.IdleSince("drv_2", now, maxIdle); got != maxIdle {
		t.Fatalf("idle should cap at %v, got %v", maxIdle, got)
	}
}

func TestTrackerConcurrentRecording(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("drv_%d", n%2)
			for j := 0; j < 200; j++ {
				tr.RecordOffered(id)
				tr.RecordAccepted(id)
				_ = tr.Score(id)
			}
		}(i)
	}
	wg.Wait()

	if got := tr.Score("drv_0"); got != 1.0 {
		t.Fatalf("expected perfect accept rate, got %v", got)
	}
}
