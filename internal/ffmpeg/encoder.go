// Package ffmpeg wraps the ffmpeg binary for the one direction climpd
// needs: Decode, which demuxes any input ffmpeg understands (file or http
// stream) to raw PCM for internal/engine/pipeline.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// DecodeOptions configures a Decode invocation.
type DecodeOptions struct {
	SampleRate int           // output PCM sample rate, e.g. 44100
	Channels   int           // output channel count, 1 or 2
	Seek       time.Duration // input-side seek offset before decode starts
	Pitch      float64       // 1.0 = unchanged; resampled via asetrate
	Speed      float64       // 1.0 = unchanged; stretched via atempo
}

// Decode starts ffmpeg decoding inputFile (or, if it begins with "http://"
// or "https://", a remote stream) to signed 16-bit little-endian PCM on its
// stdout, with pitch and speed applied as audio filters so the caller can
// feed the result straight to a pipeline.Pipeline. The returned ReadCloser is
// the process's stdout; closing it (or cancelling ctx) terminates decoding.
func (e *Encoder) Decode(ctx context.Context, inputFile string, opt DecodeOptions) (io.ReadCloser, error) {
	if opt.SampleRate <= 0 {
		opt.SampleRate = 44100
	}
	if opt.Channels <= 0 {
		opt.Channels = 2
	}
	if opt.Pitch <= 0 {
		opt.Pitch = 1.0
	}
	if opt.Speed <= 0 {
		opt.Speed = 1.0
	}

	args := []string{}
	if opt.Seek > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", opt.Seek.Seconds()))
	}
	args = append(args, "-i", inputFile)

	var filters []string
	if opt.Pitch != 1.0 {
		filters = append(filters, fmt.Sprintf("asetrate=%d*%.6f,aresample=%d",
			opt.SampleRate, opt.Pitch, opt.SampleRate))
	}
	if opt.Speed != 1.0 {
		filters = append(filters, atempoChain(opt.Speed)...)
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	args = append(args,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", opt.SampleRate),
		"-ac", fmt.Sprintf("%d", opt.Channels),
		"-vn",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: decode pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: decode pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: decode start: %w", err)
	}
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				slog.Debug("ffmpeg", "output", string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()
	return &decodeProcess{ReadCloser: stdout, cmd: cmd}, nil
}

// atempo only accepts factors in [0.5, 2.0]; chain stages to reach the
// engine's full [0.1, 40.0] speed range.
func atempoChain(speed float64) []string {
	var stages []string
	remaining := speed
	for remaining > 2.0 {
		stages = append(stages, "atempo=2.0")
		remaining /= 2.0
	}
	for remaining < 0.5 {
		stages = append(stages, "atempo=0.5")
		remaining /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%.6f", remaining))
	return stages
}

// decodeProcess closes the ffmpeg stdout pipe and reaps the process so
// Decode callers don't leak file descriptors or zombie processes.
type decodeProcess struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (d *decodeProcess) Close() error {
	err := d.ReadCloser.Close()
	d.cmd.Wait()
	return err
}
