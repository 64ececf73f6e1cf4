package observ

import (
	"errors"
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("load")
	tm.End(idx, "3 classes")
	if err := tm.Time("schedule", func() error { return errors.New("x") }); err == nil {
		t.Fatalf("Time must return fn error")
	}
	tm.End(99, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Note != "3 classes" || r.Phases[1].Note != "failed" {
		t.Fatalf("report=%+v", r)
	}
	s := tm.Summary()
	if !strings.Contains(s, "load") || !strings.Contains(s, "total") {
		t.Fatalf("summary=%q", s)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("empty timer report=%+v", r)
	}
}
