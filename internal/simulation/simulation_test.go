package simulation

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

type fakeEmitter struct {
	mu   sync.Mutex
	obs  []models.Observation
}

func (f *fakeEmitter) Observe(o models.Observation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, o)
}

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.obs)
}

func (f *fakeEmitter) snapshot() []models.Observation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Observation, len(f.obs))
	copy(out, f.obs)
	return out
}

func newTestEngine() (*Engine, *fakeEmitter) {
	em := &fakeEmitter{}
	eng := New(zap.NewNop(), em, []string{"/checkout", "/search"}, 100)
	return eng, em
}

func TestStartRejectsUnknownTarget(t *testing.T) {
	eng, _ := newTestEngine()
	_, err := eng.Start("/not-a-route", models.PatternNormal, 1, 10)
	if err != ErrInvalidTarget {
		t.Errorf("err = %v, want ErrInvalidTarget", err)
	}
}

func TestStartRejectsUnknownPattern(t *testing.T) {
	eng, _ := newTestEngine()
	_, err := eng.Start("/checkout", models.SimPattern("not-a-pattern"), 1, 10)
	if err != ErrInvalidPattern {
		t.Errorf("err = %v, want ErrInvalidPattern", err)
	}
}

func TestStartThenStartAgainFailsWhileActive(t *testing.T) {
	eng, _ := newTestEngine()
	if _, err := eng.Start("/checkout", models.PatternNormal, 5, 10); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer eng.Stop()

	if _, err := eng.Start("/checkout", models.PatternNormal, 5, 10); err != ErrAlreadyActive {
		t.Errorf("err = %v, want ErrAlreadyActive", err)
	}
}

func TestStopWithoutActiveRunFails(t *testing.T) {
	eng, _ := newTestEngine()
	if _, err := eng.Stop(); err != ErrNotActive {
		t.Errorf("err = %v, want ErrNotActive", err)
	}
}

func TestRunCompletesAndReturnsToIdle(t *testing.T) {
	eng, em := newTestEngine()
	runID, err := eng.Start("/checkout", models.PatternNormal, 1, 10)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if runID == "" {
		t.Fatal("expected a non-empty run id")
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if eng.Status().State == models.LifecycleIdle {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	status := eng.Status()
	if status.State != models.LifecycleIdle {
		t.Fatalf("state = %v, want IDLE after the run duration elapses", status.State)
	}
	if status.Active {
		t.Error("expected Active = false once the run has finished")
	}
	if em.count() == 0 {
		t.Error("expected at least one observation to have been emitted")
	}
	for _, o := range em.snapshot() {
		if o.Mode != models.ModeSim {
			t.Errorf("observation mode = %v, want SIM", o.Mode)
		}
		if o.Source != "/checkout" {
			t.Errorf("observation source = %q, want /checkout", o.Source)
		}
	}
}

func TestStopCancelsAnActiveRunBeforeItsDeadline(t *testing.T) {
	eng, _ := newTestEngine()
	if _, err := eng.Start("/search", models.PatternNormal, 60, 10); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	status, err := eng.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if status.State != models.LifecycleIdle {
		t.Errorf("state = %v, want IDLE immediately after Stop returns", status.State)
	}
}
