// Package pipeline drives one playing track: ffmpeg demuxes/decodes it to
// PCM (internal/ffmpeg.Decode), and github.com/ebitengine/oto/v3 drains that
// PCM to the system audio device. It mirrors the spec's GStreamer topology
// (source -> convert -> pitch/tempo -> volume -> sink) with ffmpeg doing
// decode+pitch+tempo and oto.Player doing volume+sink.
//
// Grounded on other_examples/8d2bc045_olivier-w-climp__internal-player-
// player.go.go (oto.NewContext/NewPlayer setup, countingReader position
// tracking, monitor-goroutine end-of-stream detection, SeekTo/Restart
// recreating the oto.Player after a decoder seek) and on the teacher's
// internal/ffmpeg/encoder.go (exec.CommandContext + stderr log draining),
// whose Decode method (added in this package's sibling) supplies the PCM.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/climp/climpd/internal/ffmpeg"
)

const (
	sampleRate     = 44100
	channels       = 2
	bytesPerSample = 2 // s16le
)

// ErrUnsupportedSeek is returned when Seek is called on a pipeline whose
// source does not support seeking (e.g. a live http stream).
var ErrUnsupportedSeek = errors.New("pipeline: seek not supported")

// otoContext is process-global: oto only allows one audio context per
// process, same constraint the teacher's player.go works around with a
// sync.Once.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("pipeline: audio init: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// countingReader tracks bytes drained from the decoder so Position can be
// derived without asking ffmpeg, exactly as the teacher's player.go does.
type countingReader struct {
	r   io.Reader
	mu  sync.Mutex
	pos int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.mu.Lock()
	c.pos += int64(n)
	c.mu.Unlock()
	return n, err
}

func (c *countingReader) Pos() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Pipeline plays one track end to end. It is not reused across tracks: the
// engine creates a new Pipeline per play_track/play_next.
type Pipeline struct {
	source   string
	seekable bool
	pitch    float64
	speed    float64
	gain     float64

	encoder *ffmpeg.Encoder

	mu       sync.Mutex
	cancel   context.CancelFunc
	decoded  io.ReadCloser
	counter  *countingReader
	player   *oto.Player
	done     chan struct{}
	closed   bool
	startPos time.Duration
}

// New starts decoding source from the beginning. seekable controls whether
// Seek is permitted (remote streams are not seekable per §4.B/§4.E).
func New(source string, seekable bool) (*Pipeline, error) {
	return newAt(source, seekable, 0, 1.0, 1.0, 1.0)
}

func newAt(source string, seekable bool, at time.Duration, pitch, speed, gain float64) (*Pipeline, error) {
	ctx, err := sharedContext()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:   source,
		seekable: seekable,
		pitch:    pitch,
		speed:    speed,
		gain:     gain,
		encoder:  ffmpeg.NewEncoder(),
		done:     make(chan struct{}),
		startPos: at,
	}

	cctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	decoded, err := p.encoder.Decode(cctx, source, ffmpeg.DecodeOptions{
		SampleRate: sampleRate,
		Channels:   channels,
		Seek:       at,
		Pitch:      pitch,
		Speed:      speed,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("pipeline: %s: %w", source, err)
	}

	p.decoded = decoded
	p.counter = &countingReader{r: decoded}
	p.player = ctx.NewPlayer(p.counter)
	p.player.SetVolume(gain)
	p.player.Play()

	go p.monitor()
	return p, nil
}

func (p *Pipeline) monitor() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.Lock()
		closed := p.closed
		playing := p.player != nil && p.player.IsPlaying()
		buffered := p.player != nil && p.player.BufferedSize() > 0
		p.mu.Unlock()
		if closed {
			return
		}
		if !playing && !buffered {
			close(p.done)
			return
		}
	}
}

// Done returns a channel closed when the track finishes (end of stream) or
// Close is called.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Pause suspends playback without tearing down the decoder.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Pause()
	}
}

// Resume continues playback after Pause.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Play()
	}
}

// Position returns elapsed playback time, derived from bytes drained.
func (p *Pipeline) Position() time.Duration {
	p.mu.Lock()
	counter := p.counter
	start := p.startPos
	p.mu.Unlock()
	if counter == nil {
		return start
	}
	bytesPerSec := sampleRate * channels * bytesPerSample
	return start + time.Duration(float64(counter.Pos())/float64(bytesPerSec)*float64(time.Second))
}

// SetVolume applies an already gain-mapped volume in [0,1] to the sink.
func (p *Pipeline) SetVolume(gain float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gain = gain
	if p.player != nil {
		p.player.SetVolume(gain)
	}
}

// Seek restarts the decoder at the given absolute position; the oto.Player
// is recreated against the new decode stream the same way the teacher's
// SeekTo/recreateOtoPlayerLocked does.
func (p *Pipeline) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seekable {
		return ErrUnsupportedSeek
	}
	if p.closed {
		return nil
	}

	if p.cancel != nil {
		p.cancel()
	}
	if p.decoded != nil {
		p.decoded.Close()
	}
	if p.player != nil {
		p.player.Close()
	}

	ctx, err := sharedContext()
	if err != nil {
		return err
	}

	cctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	decoded, err := p.encoder.Decode(cctx, p.source, ffmpeg.DecodeOptions{
		SampleRate: sampleRate,
		Channels:   channels,
		Seek:       pos,
		Pitch:      p.pitch,
		Speed:      p.speed,
	})
	if err != nil {
		return fmt.Errorf("pipeline: seek %s: %w", p.source, err)
	}
	p.decoded = decoded
	p.counter = &countingReader{r: decoded}
	p.startPos = pos
	p.player = ctx.NewPlayer(p.counter)
	p.player.SetVolume(p.gain)
	p.player.Play()
	p.done = make(chan struct{})
	go p.monitor()
	return nil
}

// SetFilters restarts decoding at the current position with new pitch/
// speed factors, since ffmpeg's filter graph cannot be changed in place.
func (p *Pipeline) SetFilters(pitch, speed float64) error {
	pos := p.Position()
	p.mu.Lock()
	p.pitch = pitch
	p.speed = speed
	p.mu.Unlock()
	if err := p.Seek(pos); err != nil && !errors.Is(err, ErrUnsupportedSeek) {
		return err
	}
	return nil
}

// Close tears down the decoder and sink. Safe to call more than once.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	if p.player != nil {
		p.player.Close()
	}
	if p.decoded != nil {
		if err := p.decoded.Close(); err != nil {
			slog.Debug("pipeline: decoder close", "source", p.source, "error", err)
		}
	}
}
