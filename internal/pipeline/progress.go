package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives the outcome of every frame of a parallel run.
// OnFrame is called from the collecting goroutine in completion order.
type ProgressCallback interface {
	OnStart(total int)
	OnFrame(done, total int, res *FrameResult)
	OnComplete()
}

// frameTally counts solved and skipped frames.
type frameTally struct {
	solved  int
	skipped int
}

func (t *frameTally) add(res *FrameResult) {
	if res != nil && res.Solved {
		t.solved++
	} else {
		t.skipped++
	}
}

// ConsoleProgressCallback draws a progress bar with solved and skipped
// counts.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration

	mu         sync.Mutex
	tally      frameTally
	startTime  time.Time
	lastUpdate time.Time
}

// NewConsoleProgressCallback creates a console progress reporter. A nil
// writer selects stderr.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the progress bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	if width > 0 {
		c.width = width
	}
	return c
}

// WithUpdateInterval sets how frequently the progress bar is redrawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tally = frameTally{}
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d frames\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnFrame(done, total int, res *FrameResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tally.add(res)
	now := time.Now()
	// The last frame is always drawn.
	if done < total && now.Sub(c.lastUpdate) < c.updateInterval {
		return
	}
	c.lastUpdate = now
	c.draw(done, total, now)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%s%d solved, %d skipped in %v\n",
		c.prefix, c.tally.solved, c.tally.skipped, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) draw(done, total int, now time.Time) {
	if total <= 0 {
		return
	}
	filled := c.width * done / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d solved %d skipped %d",
		c.prefix, bar, done, total, c.tally.solved, c.tally.skipped)

	if elapsed := now.Sub(c.startTime); elapsed > 0 && done > 0 {
		rate := float64(done) / elapsed.Seconds()
		status += fmt.Sprintf(" %.1f frames/s", rate)
		if done < total {
			eta := time.Duration(float64(total-done) / rate * float64(time.Second))
			status += fmt.Sprintf(" ETA %v", eta.Round(time.Second))
		}
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// LogProgressCallback reports progress through slog every interval frames.
type LogProgressCallback struct {
	logger   *slog.Logger
	level    slog.Level
	interval int

	mu        sync.Mutex
	tally     frameTally
	startTime time.Time
}

// NewLogProgressCallback logs at level every 10 frames. A nil logger selects
// slog.Default().
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, interval: 10}
}

// WithInterval sets how many frames pass between log records.
func (l *LogProgressCallback) WithInterval(interval int) *LogProgressCallback {
	if interval > 0 {
		l.interval = interval
	}
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tally = frameTally{}
	l.startTime = time.Now()
	l.logger.Log(context.Background(), l.level, "Estimating frames", "total", total)
}

func (l *LogProgressCallback) OnFrame(done, total int, res *FrameResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tally.add(res)
	if done%l.interval != 0 && done != total {
		return
	}
	l.logger.Log(context.Background(), l.level, "Estimation progress",
		"done", done,
		"total", total,
		"solved", l.tally.solved,
		"skipped", l.tally.skipped,
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Log(context.Background(), l.level, "Frames estimated",
		"solved", l.tally.solved,
		"skipped", l.tally.skipped,
		"elapsed", time.Since(l.startTime).Round(time.Millisecond).String(),
	)
}

// MultiProgressCallback fans out to several callbacks.
type MultiProgressCallback []ProgressCallback

// NewMultiProgressCallback combines the non-nil callbacks. It returns nil
// when none remain and the callback itself when only one does.
func NewMultiProgressCallback(callbacks ...ProgressCallback) ProgressCallback {
	var m MultiProgressCallback
	for _, cb := range callbacks {
		if cb != nil {
			m = append(m, cb)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnFrame(done, total int, res *FrameResult) {
	for _, cb := range m {
		cb.OnFrame(done, total, res)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}
