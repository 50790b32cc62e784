// Package player defines the animation playback capability consumed by the
// state machine. The engine never inspects the underlying asset; it passes
// through the clip URL, duration and playback modifiers.
package player

import "log/slog"

// Options carries the playback modifiers for one clip.
type Options struct {
	Loop   bool
	Mirror bool
	Speed  float64
}

// Player is the boundary to the live animation runtime.
type Player interface {
	// PlayClip starts playback of the asset at url for durationSec seconds.
	PlayClip(url string, durationSec float64, opts Options)
	// Stop halts whatever is currently playing.
	Stop()
}

// LogPlayer narrates playback calls without driving a real runtime. It is
// used for dry runs and as the default player of the CLI's trace mode.
type LogPlayer struct {
	log *slog.Logger
}

// NewLogPlayer returns a LogPlayer writing to logger, or slog.Default()
// when logger is nil.
func NewLogPlayer(logger *slog.Logger) *LogPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPlayer{log: logger}
}

func (p *LogPlayer) PlayClip(url string, durationSec float64, opts Options) {
	p.log.Info("play clip",
		"url", url,
		"duration_sec", durationSec,
		"loop", opts.Loop,
		"mirror", opts.Mirror,
		"speed", opts.Speed,
	)
}

func (p *LogPlayer) Stop() {
	p.log.Info("stop playback")
}
