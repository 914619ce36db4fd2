package clock

import (
	"testing"
	"time"
)

func TestManual_AdvanceFiresTickers(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)
	tk := m.NewTicker(time.Second)
	defer tk.Stop()

	m.Advance(500 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired before its period elapsed")
	default:
	}

	m.Advance(500 * time.Millisecond)
	select {
	case got := <-tk.C():
		if !got.Equal(start.Add(time.Second)) {
			t.Errorf("tick = %v, want %v", got, start.Add(time.Second))
		}
	default:
		t.Fatal("ticker did not fire")
	}

	if got := m.Now(); !got.Equal(start.Add(time.Second)) {
		t.Errorf("Now() = %v", got)
	}
}

func TestManual_DropsTicksForSlowReader(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	tk := m.NewTicker(time.Second)

	m.Advance(5 * time.Second)

	n := 0
	for {
		select {
		case <-tk.C():
			n++
			continue
		default:
		}
		break
	}
	if n != 1 {
		t.Errorf("buffered ticks = %d, want 1", n)
	}
}

func TestManual_StoppedTickerDoesNotFire(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	tk := m.NewTicker(time.Second)
	tk.Stop()

	m.Advance(2 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
