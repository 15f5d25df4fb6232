// Package playback tracks server-side playback state for the client:
// which recording is active, its position, and the playback speed.
//
// Playback is a single-owner resource. Starting playback of one recording
// stops whatever was playing before; there is never more than one active
// target.
package playback

import "sync"

// Speeds are the playback rates cycled through by [Player.CycleSpeed], in
// order.
var Speeds = []float64{1.0, 1.5, 2.0}

// State is a snapshot of the player.
type State struct {
	// RecordingID is the active recording, or "" when idle.
	RecordingID string

	// PositionSec is the current playback position.
	PositionSec float64

	// Speed is the current playback rate.
	Speed float64
}

// Player holds playback state for one client session. It is safe for
// concurrent use.
type Player struct {
	mu          sync.Mutex
	recordingID string
	positionSec float64
	speedIdx    int
}

// NewPlayer returns an idle [Player] at normal speed.
func NewPlayer() *Player {
	return &Player{}
}

// Play makes id the active recording from position zero, stopping any
// previous playback. Playing the already-active recording restarts it.
func (p *Player) Play(id string) State {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recordingID = id
	p.positionSec = 0
	return p.stateLocked()
}

// Seek moves the playback position of the active recording. Seeking while
// idle or to a negative position is ignored.
func (p *Player) Seek(positionSec float64) State {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.recordingID != "" && positionSec >= 0 {
		p.positionSec = positionSec
	}
	return p.stateLocked()
}

// CycleSpeed advances the playback rate to the next entry in [Speeds],
// wrapping back to the first after the last.
func (p *Player) CycleSpeed() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.speedIdx = (p.speedIdx + 1) % len(Speeds)
	return p.stateLocked()
}

// Close stops playback and resets position. The speed setting persists
// across playbacks.
func (p *Player) Close() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recordingID = ""
	p.positionSec = 0
	return p.stateLocked()
}

// StopIf stops playback only when id is the active recording. Used when a
// recording is deleted mid-playback.
func (p *Player) StopIf(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.recordingID == id {
		p.recordingID = ""
		p.positionSec = 0
	}
}

// State returns a snapshot of the player.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Player) stateLocked() State {
	return State{
		RecordingID: p.recordingID,
		PositionSec: p.positionSec,
		Speed:       Speeds[p.speedIdx],
	}
}
