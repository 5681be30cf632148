// Package transport provides the byte sinks a midi.Encoder writes to and the
// input side that feeds received messages into a midi.Handlers table.
package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chase3718/lou-midi/midi"
)

// DefaultBufferSize is used when NewBuffered gets a non-positive size.
const DefaultBufferSize = 64

// Buffered batches outgoing messages into larger writes. Single real-time
// bytes skip the pending batch and are written through at once, so a clock
// pulse never waits behind queued notes. Safe for concurrent use.
type Buffered struct {
	w    io.Writer
	size int

	mu  sync.Mutex // guards buf; taken before wmu
	buf []byte

	wmu sync.Mutex // serialises writes to w

	logger *slog.Logger
}

// NewBuffered wraps w. Pending bytes are written once size would be exceeded
// or on Flush.
func NewBuffered(w io.Writer, size int) *Buffered {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffered{
		w:      w,
		size:   size,
		buf:    make([]byte, 0, size),
		logger: slog.Default(),
	}
}

func isRealTimeByte(p []byte) bool {
	return len(p) == 1 && p[0] >= byte(midi.Clock)
}

// Write queues p, or writes it through when it is a lone real-time byte.
func (b *Buffered) Write(p []byte) (int, error) {
	if isRealTimeByte(p) {
		b.wmu.Lock()
		defer b.wmu.Unlock()
		return b.w.Write(p)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) > 0 && len(b.buf)+len(p) > b.size {
		if err := b.flushLocked(); err != nil {
			return 0, err
		}
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Flush writes every pending byte.
func (b *Buffered) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

// Pending reports how many bytes are waiting for the next flush.
func (b *Buffered) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

func (b *Buffered) flushLocked() error {
	if len(b.buf) == 0 {
		return nil
	}
	b.wmu.Lock()
	n, err := b.w.Write(b.buf)
	b.wmu.Unlock()

	// keep whatever was not written at the front of the buffer
	b.buf = b.buf[:copy(b.buf, b.buf[n:])]
	return err
}

// FlushEvery flushes on every tick of interval until ctx is done, then does a
// final flush. Blocks; run it in a goroutine.
func (b *Buffered) FlushEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := b.Flush(); err != nil {
				b.logger.Error("transport: final flush failed", "err", err)
			}
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.logger.Warn("transport: flush failed", "err", err)
			}
		}
	}
}
