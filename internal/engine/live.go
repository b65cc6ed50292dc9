package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/backend"
	"github.com/web3guy0/polybot/internal/price"
)

// SyncInterval is the default live balance/positions refresh period.
const SyncInterval = 5 * time.Second

// Live wraps Engine with a background sync goroutine that every sync
// interval (SyncInterval by default) sums balances across backends and rebuilds the
// positions map from each backend's positions JSON. Both caches are
// protected by Engine's own mutex; Live adds only the goroutine and
// its shutdown signal.
type Live struct {
	*Engine

	syncInterval time.Duration

	syncMu      sync.Mutex
	syncRunning bool
	syncStopCh  chan struct{}
	syncDone    chan struct{}
}

// NewLive wraps an existing engine with live-mode sync, ticking the
// sync loop at the default 5s interval.
func NewLive(e *Engine) *Live {
	return &Live{Engine: e, syncInterval: SyncInterval}
}

// WithSyncInterval overrides the balance/positions refresh period.
func (l *Live) WithSyncInterval(d time.Duration) *Live {
	if d > 0 {
		l.syncInterval = d
	}
	return l
}

// Start begins the tick loop (Engine.Run, in its own goroutine) and
// the sync loop.
func (l *Live) Start() {
	go l.Engine.Run()
	l.startSync()
}

func (l *Live) startSync() {
	l.syncMu.Lock()
	if l.syncRunning {
		l.syncMu.Unlock()
		return
	}
	l.syncRunning = true
	l.syncStopCh = make(chan struct{})
	l.syncDone = make(chan struct{})
	stopCh := l.syncStopCh
	done := l.syncDone
	l.syncMu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				l.syncState()
			}
		}
	}()
}

// Stop flips the engine off and joins the sync goroutine.
func (l *Live) Stop() {
	l.Engine.Stop()

	l.syncMu.Lock()
	if !l.syncRunning {
		l.syncMu.Unlock()
		return
	}
	l.syncRunning = false
	close(l.syncStopCh)
	done := l.syncDone
	l.syncMu.Unlock()

	<-done
}

// syncState sums get_balance() across backends and rebuilds the
// positions map from each backend's positions JSON, tolerating all
// three documented shapes. An unrecognized shape or parse failure is
// treated as "no positions" for that backend, per spec.
func (l *Live) syncState() {
	l.mu.RLock()
	backends := l.backends
	l.mu.RUnlock()

	total := price.Zero
	positions := make(map[uint32]int64)

	for _, b := range backends {
		total = total.Add(b.GetBalance())

		raw, err := b.GetPositions()
		if err != nil {
			log.Debug().Err(err).Str("backend", b.Name()).Msg("live: get_positions failed")
			continue
		}
		for _, pos := range backend.ParsePositions(raw) {
			positions[pos.MarketHash] += pos.Size
		}
	}

	l.mu.Lock()
	l.balance = total
	l.positions = positions
	l.mu.Unlock()

	log.Debug().Str("balance", total.String()).Int("markets", len(positions)).Msg("live: synced state")
}
