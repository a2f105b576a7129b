// Package engine implements the climpd playback state machine described
// in spec §4.E: Stopped/Paused/Playing, driven by a pipeline.Pipeline per
// track, advancing through a playlist.Playlist on end-of-stream.
//
// Grounded on the teacher's internal/radio/stream.go Broadcaster.Start
// (the nextTrack-from-playlist / per-track cancellable context / skip-
// channel loop that keeps broadcasting across track boundaries) adapted
// from "one continuous encode across a playlist" to "one engine that can
// be paused, resumed, and seeked between discrete states".
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/climp/climpd/internal/engine/pipeline"
	"github.com/climp/climpd/internal/media"
	"github.com/climp/climpd/internal/playlist"
)

// State is one of the engine's three playback states.
type State int

const (
	Stopped State = iota
	Paused
	Playing
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

var (
	// ErrNoMedium is returned by play_next against an empty playlist.
	ErrNoMedium = errors.New("engine: no medium")
	// ErrRange is returned by play_track given an out-of-range index.
	ErrRange = errors.New("engine: index out of range")
	// ErrUnseekable is returned by Seek against a non-seekable or
	// not-yet-parsed track.
	ErrUnseekable = errors.New("engine: not seekable")
)

// Engine owns the playback state machine and the single active pipeline.
type Engine struct {
	log *slog.Logger
	pl  *playlist.Playlist

	mu     sync.Mutex
	state  State
	volume int
	mute   bool
	pitch  float64
	speed  float64
	active *media.Media
	pipe   *pipeline.Pipeline
	gen    uint64 // bumped on every new pipeline so a stale monitor goroutine no-ops
}

// New creates an Engine bound to pl. Volume starts at 70 and pitch/speed
// at unity (1.0), the config defaults; callers normally overwrite them
// from config immediately after construction.
func New(log *slog.Logger, pl *playlist.Playlist) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:    log,
		pl:     pl,
		state:  Stopped,
		volume: 70,
		pitch:  1.0,
		speed:  1.0,
	}
}

// State returns the current playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Active returns the currently active media, or nil in Stopped.
func (e *Engine) Active() *media.Media {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// gain maps an internal volume value into the sink's linear gain by the
// logarithmic curve g(v) = (101 - 50*log10(101-v)) / 101, so v=0 near-mutes
// and v=100 is unity.
func gain(v int) float64 {
	if v <= 0 {
		return 0
	}
	if v >= 100 {
		return 1
	}
	return (101 - 50*math.Log10(float64(101-v))) / 101
}

func (e *Engine) effectiveGainLocked() float64 {
	if e.mute {
		return 0
	}
	return gain(e.volume)
}

// Play resumes a Paused engine, or, if Stopped, starts the track PlayNext
// advances to (the first track when the cursor is NONE). Playing is left
// unchanged (no-op).
func (e *Engine) Play() error {
	e.mu.Lock()
	switch e.state {
	case Playing:
		e.mu.Unlock()
		return nil
	case Paused:
		e.pipe.Resume()
		e.state = Playing
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	return e.PlayNext()
}

// Pause suspends playback. No-op unless currently Playing.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Playing {
		return
	}
	e.pipe.Pause()
	e.state = Paused
}

// Stop tears down the active pipeline and returns to Stopped from any
// state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	e.gen++
	if e.pipe != nil {
		e.pipe.Close()
		e.pipe = nil
	}
	e.active = nil
	e.state = Stopped
}

// PlayNext advances the playlist and plays the next track, or stops if the
// playlist is exhausted without repeat. Returns ErrNoMedium for an empty
// playlist.
func (e *Engine) PlayNext() error {
	if e.pl.Empty() {
		return ErrNoMedium
	}
	m := e.pl.Next()
	if m == nil {
		e.mu.Lock()
		e.stopLocked()
		e.mu.Unlock()
		return nil
	}
	return e.start(m)
}

// PlayTrack plays the track at index i. It does not move the playlist
// cursor: a following PlayNext advances from wherever the cursor already
// was, not from i.
func (e *Engine) PlayTrack(i int) error {
	m, err := e.pl.At(i)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRange, err)
	}
	return e.start(m)
}

func (e *Engine) start(m *media.Media) error {
	e.mu.Lock()
	e.gen++
	myGen := e.gen
	if e.pipe != nil {
		e.pipe.Close()
		e.pipe = nil
	}
	pitch, speed := e.pitch, e.speed
	g := e.effectiveGainLocked()
	e.mu.Unlock()

	pipe, err := pipeline.New(m.URI, !m.IsHTTP())
	if err != nil {
		e.log.Error("pipeline start failed", "uri", m.URI, "error", err)
		return fmt.Errorf("engine: play %s: %w", m.URI, err)
	}
	pipe.SetVolume(g)
	if pitch != 1.0 || speed != 1.0 {
		if err := pipe.SetFilters(pitch, speed); err != nil {
			e.log.Warn("failed to apply pitch/speed", "uri", m.URI, "error", err)
		}
	}

	e.mu.Lock()
	if myGen != e.gen {
		// Superseded by a concurrent Stop/play while the pipeline was
		// starting; discard it rather than publishing a stale track.
		e.mu.Unlock()
		pipe.Close()
		return nil
	}
	e.pipe = pipe
	e.active = m
	e.state = Playing
	e.mu.Unlock()

	go e.watch(pipe, myGen)
	return nil
}

// watch waits for the active pipeline to report end-of-stream and then
// advances the playlist, the way the teacher's Broadcaster.Start loop
// advances to nextTrack() when encoder.Stream returns.
func (e *Engine) watch(p *pipeline.Pipeline, gen uint64) {
	<-p.Done()
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err := e.PlayNext(); err != nil && !errors.Is(err, ErrNoMedium) {
		e.log.Error("play_next after end-of-stream failed", "error", err)
	}
}

// Position returns the active pipeline's current playback position, or 0
// when nothing is playing.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	pipe := e.pipe
	e.mu.Unlock()
	if pipe == nil {
		return 0
	}
	return pipe.Position()
}

// Seek moves the active track to the given absolute position. The track
// must be parsed and seekable.
func (e *Engine) Seek(pos time.Duration) error {
	e.mu.Lock()
	active := e.active
	pipe := e.pipe
	e.mu.Unlock()

	if active == nil || pipe == nil {
		return fmt.Errorf("%w: no active track", ErrUnseekable)
	}
	info := active.Info()
	if !active.Parsed() || !info.Seekable {
		return fmt.Errorf("%w: %s", ErrUnseekable, active.URI)
	}
	if info.Duration > 0 && pos >= time.Duration(info.Duration)*time.Second {
		return fmt.Errorf("engine: seek: position out of range")
	}
	if err := pipe.Seek(pos); err != nil {
		return fmt.Errorf("engine: seek: %w", err)
	}
	return nil
}

// SetVolume clamps v into [0,100] and applies it to the active pipeline.
func (e *Engine) SetVolume(v int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = clamp(v, 0, 100)
	if e.pipe != nil {
		e.pipe.SetVolume(e.effectiveGainLocked())
	}
	return e.volume
}

// Volume returns the current internal volume value.
func (e *Engine) Volume() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetMute sets the mute flag.
func (e *Engine) SetMute(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mute = v
	if e.pipe != nil {
		e.pipe.SetVolume(e.effectiveGainLocked())
	}
}

// ToggleMute flips and returns the new mute flag.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mute = !e.mute
	if e.pipe != nil {
		e.pipe.SetVolume(e.effectiveGainLocked())
	}
	return e.mute
}

// Mute returns the current mute flag.
func (e *Engine) Mute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mute
}

// SetPitch clamps v into [0.1, 10.0] and restarts the active pipeline's
// filter chain.
func (e *Engine) SetPitch(v float64) float64 {
	e.mu.Lock()
	e.pitch = clampf(v, 0.1, 10.0)
	pitch, speed, pipe := e.pitch, e.speed, e.pipe
	e.mu.Unlock()
	if pipe != nil {
		if err := pipe.SetFilters(pitch, speed); err != nil {
			e.log.Warn("failed to apply pitch", "error", err)
		}
	}
	return pitch
}

// Pitch returns the current pitch factor.
func (e *Engine) Pitch() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pitch
}

// SetSpeed clamps v into [0.1, 40.0] and restarts the active pipeline's
// filter chain.
func (e *Engine) SetSpeed(v float64) float64 {
	e.mu.Lock()
	e.speed = clampf(v, 0.1, 40.0)
	pitch, speed, pipe := e.pitch, e.speed, e.pipe
	e.mu.Unlock()
	if pipe != nil {
		if err := pipe.SetFilters(pitch, speed); err != nil {
			e.log.Warn("failed to apply speed", "error", err)
		}
	}
	return speed
}

// Speed returns the current speed factor.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
