package playback_test

import (
	"testing"

	"github.com/olayinkafad/plainly/internal/playback"
)

func TestPlayer_PlayStopsPrevious(t *testing.T) {
	t.Parallel()

	p := playback.NewPlayer()
	p.Play("r1")
	p.Seek(30)

	st := p.Play("r2")
	if st.RecordingID != "r2" {
		t.Errorf("RecordingID = %q, want r2", st.RecordingID)
	}
	if st.PositionSec != 0 {
		t.Errorf("PositionSec = %v, want 0 after switching target", st.PositionSec)
	}
}

func TestPlayer_SeekIgnoredWhenIdle(t *testing.T) {
	t.Parallel()

	p := playback.NewPlayer()
	st := p.Seek(42)
	if st.RecordingID != "" || st.PositionSec != 0 {
		t.Errorf("Seek while idle changed state: %+v", st)
	}
}

func TestPlayer_SeekNegativeIgnored(t *testing.T) {
	t.Parallel()

	p := playback.NewPlayer()
	p.Play("r1")
	p.Seek(10)
	st := p.Seek(-5)
	if st.PositionSec != 10 {
		t.Errorf("PositionSec = %v, want 10 after negative seek", st.PositionSec)
	}
}

func TestPlayer_SpeedCyclesAndWraps(t *testing.T) {
	t.Parallel()

	p := playback.NewPlayer()
	want := []float64{1.5, 2.0, 1.0, 1.5}
	for i, w := range want {
		if st := p.CycleSpeed(); st.Speed != w {
			t.Errorf("cycle %d: Speed = %v, want %v", i, st.Speed, w)
		}
	}
}

func TestPlayer_SpeedPersistsAcrossPlaybacks(t *testing.T) {
	t.Parallel()

	p := playback.NewPlayer()
	p.Play("r1")
	p.CycleSpeed()
	p.Close()

	st := p.Play("r2")
	if st.Speed != 1.5 {
		t.Errorf("Speed = %v, want 1.5 to persist across Close", st.Speed)
	}
}

func TestPlayer_StopIf(t *testing.T) {
	t.Parallel()

	p := playback.NewPlayer()
	p.Play("r1")

	p.StopIf("other")
	if st := p.State(); st.RecordingID != "r1" {
		t.Error("StopIf stopped the wrong recording")
	}

	p.StopIf("r1")
	if st := p.State(); st.RecordingID != "" {
		t.Error("StopIf did not stop the active recording")
	}
}
