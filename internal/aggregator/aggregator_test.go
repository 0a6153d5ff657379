package aggregator

import (
	"sync"
	"testing"
	"time"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

func obsAt(mode models.Mode, source string) models.Observation {
	return models.Observation{Mode: mode, Source: source, Route: source, WallClock: time.Now()}
}

func TestPushSealsAtWindowSize(t *testing.T) {
	agg := New(10)

	var win *models.Window
	for i := 0; i < 9; i++ {
		w, sealed := agg.Push(obsAt(models.ModeLive, "/login"))
		if sealed {
			t.Fatalf("window sealed early at observation %d", i+1)
		}
		win = w
	}
	if win != nil {
		t.Fatal("expected nil window before seal")
	}

	w, sealed := agg.Push(obsAt(models.ModeLive, "/login"))
	if !sealed {
		t.Fatal("expected window to seal on the 10th observation")
	}
	if len(w.Observations) != 10 {
		t.Errorf("sealed window has %d observations, want 10", len(w.Observations))
	}
	if w.ID != 0 {
		t.Errorf("first sealed window id = %d, want 0", w.ID)
	}
}

func TestPushWindowIDsIncreasePerSource(t *testing.T) {
	agg := New(2)

	var ids []int64
	for i := 0; i < 3; i++ {
		agg.Push(obsAt(models.ModeLive, "/login"))
		w, sealed := agg.Push(obsAt(models.ModeLive, "/login"))
		if !sealed {
			t.Fatalf("window %d did not seal", i)
		}
		ids = append(ids, w.ID)
	}

	for i, id := range ids {
		if id != int64(i) {
			t.Errorf("window %d has ID %d, want %d", i, id, i)
		}
	}
}

func TestPushStreamsAreIndependentPerSourceAndMode(t *testing.T) {
	agg := New(2)

	agg.Push(obsAt(models.ModeLive, "/login"))
	agg.Push(obsAt(models.ModeSim, "/login"))

	openLive, _ := agg.Snapshot(models.ModeLive, "/login")
	openSim, _ := agg.Snapshot(models.ModeSim, "/login")
	if openLive != 1 || openSim != 1 {
		t.Fatalf("expected one observation buffered in each independent stream, got live=%d sim=%d", openLive, openSim)
	}

	_, sealed := agg.Push(obsAt(models.ModeLive, "/login"))
	if !sealed {
		t.Fatal("expected LIVE /login window to seal")
	}
	openSimAfter, sealedSimCount := agg.Snapshot(models.ModeSim, "/login")
	if openSimAfter != 1 || sealedSimCount != 0 {
		t.Fatalf("SIM stream must be unaffected by sealing the LIVE stream, got open=%d sealed=%d", openSimAfter, sealedSimCount)
	}
}

func TestPushConcurrentSourcesDoNotLoseObservations(t *testing.T) {
	agg := New(20)

	var wg sync.WaitGroup
	sources := []string{"/login", "/search", "/profile"}
	for _, src := range sources {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				agg.Push(obsAt(models.ModeLive, source))
			}
		}(src)
	}
	wg.Wait()

	for _, src := range sources {
		open, sealed := agg.Snapshot(models.ModeLive, src)
		total := int64(open) + sealed*20
		if total != 40 {
			t.Errorf("source %s: total observations accounted for = %d, want 40", src, total)
		}
	}
}

func BenchmarkPush(b *testing.B) {
	agg := New(10)
	obs := obsAt(models.ModeLive, "/login")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		agg.Push(obs)
	}
}
