package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/chase3718/lou-midi/midi"
)

// DefaultRescanInterval is how often the watcher lists inputs.
const DefaultRescanInterval = time.Second

// Watcher keeps one MIDI input connected and hands every complete message it
// receives to a midi.Handlers table. It picks up a preferred device when one
// appears (hot-plug) and drops the connection when it disappears.
type Watcher struct {
	mu           sync.Mutex
	drv          Driver
	handlers     *midi.Handlers
	inPort       drivers.In
	stopFn       func()
	connected    bool
	selectedName string
	lastRescanAt time.Time

	preferred []string
	excluded  []string
	rescan    time.Duration

	onDisconnect func()
	logger       *slog.Logger
}

// WatcherConfig tunes device selection. Inputs matching Excluded are never
// connected; the first input matching Preferred wins, otherwise a lone input
// is used.
type WatcherConfig struct {
	Preferred      []string
	Excluded       []string
	RescanInterval time.Duration
	// OnDisconnect runs on its own goroutine when the active device is lost.
	OnDisconnect func()
	Logger       *slog.Logger
}

// NewWatcher builds a watcher that dispatches into handlers. Call Run or Tick
// to start connecting.
func NewWatcher(drv Driver, handlers *midi.Handlers, cfg WatcherConfig) *Watcher {
	w := &Watcher{
		drv:          drv,
		handlers:     handlers,
		preferred:    cfg.Preferred,
		excluded:     cfg.Excluded,
		rescan:       cfg.RescanInterval,
		onDisconnect: cfg.OnDisconnect,
		logger:       cfg.Logger,
	}
	if w.rescan <= 0 {
		w.rescan = DefaultRescanInterval
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Connected returns the name of the active input, or "" when none is open.
func (w *Watcher) Connected() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedName
}

// Run calls Tick on every rescan interval until ctx is done, then closes the
// active connection.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.rescan)
	defer ticker.Stop()

	w.Tick()
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Close shuts down the active connection.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeConn()
}

// Tick scans for devices, auto-connects to a preferred one, and detects
// disappearances. Calls closer together than the rescan interval are ignored.
func (w *Watcher) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if !w.lastRescanAt.IsZero() && now.Sub(w.lastRescanAt) < w.rescan {
		return
	}
	w.lastRescanAt = now

	inputs := w.listInputs()

	if w.connected {
		for _, n := range inputs {
			if n == w.selectedName {
				return
			}
		}
		w.logger.Warn("midi: device disappeared", "device", w.selectedName)
		w.closeConn()
		w.lastRescanAt = time.Time{}
		if w.onDisconnect != nil {
			go w.onDisconnect()
		}
		return
	}

	cand, ok := pickPreferred(inputs, w.preferred)
	if !ok {
		return
	}
	if err := w.openByName(cand); err != nil {
		w.logger.Error("midi: connect failed", "device", cand, "err", err)
	}
}

// -------------------- internal --------------------

func (w *Watcher) listInputs() []string {
	ins, err := w.drv.Ins()
	if err != nil {
		w.logger.Error("midi: list inputs failed", "err", err)
		return nil
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	names = filterExcluded(names, w.excluded)
	w.logger.Debug("midi: inputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names
}

func filterExcluded(names, excluded []string) []string {
	var out []string
	for _, name := range names {
		skip := false
		for _, pat := range excluded {
			if containsCI(name, pat) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, name)
		}
	}
	return out
}

func pickPreferred(inputs, preferred []string) (string, bool) {
	for _, pat := range preferred {
		for _, name := range inputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}

func (w *Watcher) closeConn() {
	if w.stopFn != nil {
		w.stopFn()
		w.stopFn = nil
	}
	if w.inPort != nil {
		_ = w.inPort.Close()
		w.inPort = nil
	}
	if w.connected {
		w.logger.Info("midi: input closed", "device", w.selectedName)
	}
	w.connected = false
	w.selectedName = ""
}

func (w *Watcher) openByName(name string) error {
	ins, err := w.drv.Ins()
	if err != nil {
		return err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := gomidi.ListenTo(found, func(msg gomidi.Message, _ int32) {
		if !w.handlers.Dispatch(msg) {
			w.logger.Debug("midi: unhandled message", "msg", msg.String())
		}
	}, gomidi.UseSysEx(), gomidi.HandleError(func(listenErr error) {
		w.logger.Warn("midi: listener error", "device", name, "err", listenErr)
		// closeConn stops the listener, so it cannot run on the listener's
		// own goroutine.
		go func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.connected && w.selectedName == name {
				w.closeConn()
				w.lastRescanAt = time.Time{}
				if w.onDisconnect != nil {
					go w.onDisconnect()
				}
			}
		}()
	}))
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	w.inPort = found
	w.stopFn = stop
	w.connected = true
	w.selectedName = name
	w.logger.Info("midi: connected", "device", name)
	return nil
}
