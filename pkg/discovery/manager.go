package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/unamentis/unamentis-go/pkg/log"
)

// ServerCache persists the last successfully connected server.
// The Manager is the single writer; tiers never self-persist.
type ServerCache interface {
	// SaveToCache overwrites the cached record with server.
	SaveToCache(server *DiscoveredServer) error

	// ClearCache removes the cached record.
	ClearCache() error
}

// ManagerConfig configures the discovery Manager.
type ManagerConfig struct {
	// Tiers is the fallback chain in priority order.
	// Use DefaultTiers for the standard cached/bonjour/subnet chain.
	Tiers []TierDiscoverer

	// Cache receives the validated winner of each attempt. If nil and
	// one of the tiers is a *CachedServerDiscovery, that tier's cache
	// is adopted.
	Cache ServerCache

	// Validator health-checks candidates. Default: NewHealthChecker().
	Validator HealthValidator

	// Logger receives discovery events. Default: log.NoopLogger.
	Logger log.Logger
}

// Manager iterates the discovery tiers in fixed priority order,
// health-validates each candidate, persists the winner, and publishes
// observable state for a presentation layer.
//
// At most one discovery attempt is in flight per Manager; starting a new
// attempt cancels any prior one first. Tiers are awaited strictly
// sequentially - a later tier never starts unless every cheaper tier
// failed, and a later tier's result is never surfaced once an earlier
// tier produced a validated success.
type Manager struct {
	// startMu serializes attempt entry points (start, retry, direct
	// configuration) so only one orchestration loop ever runs.
	startMu sync.Mutex

	mu sync.Mutex

	tiers     []TierDiscoverer
	cache     ServerCache
	validator HealthValidator
	logger    log.Logger

	state       State
	progress    float64
	discovered  []*DiscoveredServer
	connected   *DiscoveredServer
	currentTier Tier
	tierActive  bool

	attemptID     string
	attemptCancel context.CancelFunc
	attemptDone   chan struct{}

	onStateChange func(old, new State)
}

// NewManager creates a discovery manager.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		tiers:     cfg.Tiers,
		cache:     cfg.Cache,
		validator: cfg.Validator,
		logger:    cfg.Logger,
		state:     Idle(),
	}
	if m.validator == nil {
		m.validator = NewHealthChecker()
	}
	if m.logger == nil {
		m.logger = log.NoopLogger{}
	}
	if m.cache == nil {
		for _, tier := range m.tiers {
			if cached, ok := tier.(*CachedServerDiscovery); ok {
				m.cache = cached
				break
			}
		}
	}
	return m
}

// State returns the current orchestrator state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Progress returns attempt progress in [0, 1], approximated as
// tier-index / tier-count.
func (m *Manager) Progress() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress
}

// DiscoveredServers returns the servers that passed health validation
// during the current attempt. The list is reset at the start of each
// StartDiscovery call.
func (m *Manager) DiscoveredServers() []*DiscoveredServer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*DiscoveredServer, len(m.discovered))
	copy(out, m.discovered)
	return out
}

// ConnectedServer returns the currently connected server, if any.
func (m *Manager) ConnectedServer() *DiscoveredServer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// CurrentTier returns the tier whose discover call is in flight.
func (m *Manager) CurrentTier() (Tier, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTier, m.tierActive
}

// OnStateChange sets a callback invoked on every state transition.
// The callback runs on the orchestrator's goroutine and must not call
// back into the Manager.
func (m *Manager) OnStateChange(fn func(old, new State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// ClearCache removes the persisted server record.
func (m *Manager) ClearCache() error {
	if m.cache == nil {
		return nil
	}
	return m.cache.ClearCache()
}

// StartDiscovery runs the tier loop and blocks until the attempt reaches
// a terminal state: Connected on the first validated candidate,
// ManualConfigRequired when all tiers are exhausted, or Idle when the
// attempt was cancelled. Any prior attempt is cancelled first.
func (m *Manager) StartDiscovery(ctx context.Context) State {
	m.CancelDiscovery()
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.abortAttempt()
	attemptCtx, done := m.beginAttempt(ctx)
	return m.runTierLoop(attemptCtx, done)
}

// RetryDiscovery cancels any in-flight attempt and starts a fresh one.
// The discovered-servers list is always reset before re-running.
func (m *Manager) RetryDiscovery(ctx context.Context) State {
	m.CancelDiscovery()
	return m.StartDiscovery(ctx)
}

// CancelDiscovery cancels an in-flight attempt and waits for it to
// unwind back to Idle. It is idempotent and safe to call from any
// state; when no attempt is in progress the exposed state is untouched.
func (m *Manager) CancelDiscovery() {
	m.mu.Lock()
	cancel := m.attemptCancel
	done := m.attemptDone
	m.mu.Unlock()

	if cancel == nil {
		return
	}

	for _, tier := range m.tiers {
		tier.Cancel()
	}
	cancel()
	<-done
}

// ConfigureManually bypasses the tier loop: the address is validated and,
// on success, connected and persisted exactly like a tier result.
// On failure the state becomes Failed with the rejection reason.
func (m *Manager) ConfigureManually(ctx context.Context, host string, port int, name string) error {
	m.CancelDiscovery()
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.abortAttempt()

	if host == "" {
		m.setState(Failed("Missing host"))
		return ErrMissingHost
	}
	if port < 1 || port > 65535 {
		m.setState(Failed("Invalid port"))
		return ErrInvalidPort
	}
	if name == "" {
		name = fmt.Sprintf("%s:%d", host, port)
	}

	return m.connectDirect(ctx, NewDiscoveredServer(host, port, name, MethodManual))
}

// ConfigureFromQRCode bypasses the tier loop using a scanned JSON
// payload. A malformed payload fails fast with state Failed("Invalid QR
// code") and never touches the cache.
func (m *Manager) ConfigureFromQRCode(ctx context.Context, payload []byte) error {
	m.CancelDiscovery()
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.abortAttempt()

	qr, err := ParseQRPayload(payload)
	if err != nil {
		m.setState(Failed("Invalid QR code"))
		m.logEvent(log.Event{
			Category: log.CategoryError,
			Error:    err.Error(),
		})
		return err
	}

	return m.connectDirect(ctx, qr.Server())
}

// beginAttempt installs a fresh attempt and resets per-attempt state.
func (m *Manager) beginAttempt(ctx context.Context) (context.Context, chan struct{}) {
	attemptCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.attemptCancel = cancel
	m.attemptDone = done
	m.attemptID = uuid.NewString()
	m.discovered = nil
	m.connected = nil
	m.progress = 0
	m.tierActive = false
	m.setStateLocked(Discovering())
	m.mu.Unlock()

	m.logEvent(log.Event{Category: log.CategoryAttemptStart})
	return attemptCtx, done
}

// abortAttempt cancels any in-flight attempt and waits for it to unwind.
func (m *Manager) abortAttempt() {
	m.mu.Lock()
	cancel := m.attemptCancel
	done := m.attemptDone
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	for _, tier := range m.tiers {
		tier.Cancel()
	}
	cancel()
	<-done
}

// runTierLoop iterates the tiers in priority order until one produces a
// validated server or the chain is exhausted.
func (m *Manager) runTierLoop(ctx context.Context, done chan struct{}) State {
	defer m.endAttempt(done)

	tierCount := len(m.tiers)
	for i, tier := range m.tiers {
		if ctx.Err() != nil {
			return m.finishAttempt(Idle())
		}

		m.mu.Lock()
		m.currentTier = tier.Tier()
		m.tierActive = true
		m.progress = float64(i) / float64(tierCount)
		m.setStateLocked(TryingTier(tier.Tier()))
		m.mu.Unlock()

		m.logEvent(log.Event{
			Category: log.CategoryTierStart,
			Tier:     tier.Tier().String(),
		})

		tierCtx, cancel := context.WithTimeout(ctx, tier.Tier().Timeout())
		started := time.Now()
		server, err := tier.Discover(tierCtx)
		cancel()

		if err != nil {
			if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
				return m.finishAttempt(Idle())
			}
			// Tier-internal failures are equivalent to no result.
			m.logEvent(log.Event{
				Category: log.CategoryError,
				Tier:     tier.Tier().String(),
				Error:    err.Error(),
			})
			continue
		}
		if server == nil {
			continue
		}

		m.logEvent(log.Event{
			Category: log.CategoryCandidate,
			Tier:     tier.Tier().String(),
			Host:     server.Host,
			Port:     server.Port,
			Method:   string(server.Method),
			Elapsed:  time.Since(started),
		})

		// A result that arrives after cancellation was requested is
		// never surfaced.
		if ctx.Err() != nil {
			return m.finishAttempt(Idle())
		}

		if ok := m.validate(ctx, server); !ok {
			if ctx.Err() != nil {
				return m.finishAttempt(Idle())
			}
			continue
		}

		m.connect(server)
		return m.finishAttempt(Connected(server))
	}

	if ctx.Err() != nil {
		return m.finishAttempt(Idle())
	}
	return m.finishAttempt(ManualConfigRequired())
}

// connectDirect validates a manually or QR-supplied server and connects
// on success. Used by the paths that bypass the tier loop.
func (m *Manager) connectDirect(ctx context.Context, server *DiscoveredServer) error {
	m.mu.Lock()
	m.attemptID = uuid.NewString()
	m.mu.Unlock()

	m.logEvent(log.Event{
		Category: log.CategoryCandidate,
		Host:     server.Host,
		Port:     server.Port,
		Method:   string(server.Method),
	})

	started := time.Now()
	if err := m.validator.Check(ctx, server); err != nil {
		m.logEvent(log.Event{
			Category: log.CategoryValidation,
			Host:     server.Host,
			Port:     server.Port,
			Error:    err.Error(),
			Elapsed:  time.Since(started),
		})
		m.setState(Failed(fmt.Sprintf("Server at %s:%d is not responding", server.Host, server.Port)))
		return err
	}

	m.logEvent(log.Event{
		Category: log.CategoryValidation,
		Host:     server.Host,
		Port:     server.Port,
		Elapsed:  time.Since(started),
	})

	m.connect(server)
	m.setState(Connected(server))
	return nil
}

// validate health-checks a candidate and records the outcome. Validated
// servers are appended to the attempt's discovered list; rejected
// candidates never are.
func (m *Manager) validate(ctx context.Context, server *DiscoveredServer) bool {
	started := time.Now()
	err := m.validator.Check(ctx, server)

	event := log.Event{
		Category: log.CategoryValidation,
		Host:     server.Host,
		Port:     server.Port,
		Method:   string(server.Method),
		Elapsed:  time.Since(started),
	}
	if err != nil {
		event.Error = err.Error()
	}
	m.logEvent(event)

	if err != nil {
		return false
	}

	m.mu.Lock()
	m.appendDiscoveredLocked(server)
	m.mu.Unlock()
	return true
}

// connect records server as the connected winner and persists it.
func (m *Manager) connect(server *DiscoveredServer) {
	if m.cache != nil {
		if err := m.cache.SaveToCache(server); err != nil {
			m.logEvent(log.Event{
				Category: log.CategoryError,
				Host:     server.Host,
				Port:     server.Port,
				Error:    fmt.Sprintf("cache write failed: %v", err),
			})
		} else {
			m.logEvent(log.Event{
				Category: log.CategoryCacheWrite,
				Host:     server.Host,
				Port:     server.Port,
				Method:   string(server.Method),
			})
		}
	}

	m.mu.Lock()
	m.appendDiscoveredLocked(server)
	m.connected = server
	m.mu.Unlock()
}

// finishAttempt publishes the attempt's terminal state.
func (m *Manager) finishAttempt(final State) State {
	m.mu.Lock()
	m.tierActive = false
	if final.Kind == StateConnected || final.Kind == StateManualConfigRequired {
		m.progress = 1
	}
	m.setStateLocked(final)
	m.mu.Unlock()

	m.logEvent(log.Event{
		Category: log.CategoryAttemptEnd,
		NewState: final.String(),
	})
	return final
}

// endAttempt releases the attempt slot and signals waiters.
func (m *Manager) endAttempt(done chan struct{}) {
	m.mu.Lock()
	if m.attemptDone == done {
		m.attemptCancel = nil
		m.attemptDone = nil
	}
	m.mu.Unlock()
	close(done)
}

// appendDiscoveredLocked appends a validated server, de-duplicating by
// host and port.
func (m *Manager) appendDiscoveredLocked(server *DiscoveredServer) {
	for _, existing := range m.discovered {
		if existing.Equal(server) {
			return
		}
	}
	m.discovered = append(m.discovered, server)
}

// setState publishes a state transition.
func (m *Manager) setState(next State) {
	m.mu.Lock()
	m.setStateLocked(next)
	m.mu.Unlock()
}

// setStateLocked updates the state and fires the change callback.
// Callers must hold m.mu.
func (m *Manager) setStateLocked(next State) {
	old := m.state
	if old == next {
		return
	}
	m.state = next

	m.logger.Log(log.Event{
		Timestamp: time.Now(),
		AttemptID: m.attemptID,
		Category:  log.CategoryStateChange,
		OldState:  old.String(),
		NewState:  next.String(),
	})

	if m.onStateChange != nil {
		m.onStateChange(old, next)
	}
}

// logEvent stamps and emits a discovery event.
func (m *Manager) logEvent(event log.Event) {
	m.mu.Lock()
	event.AttemptID = m.attemptID
	m.mu.Unlock()
	event.Timestamp = time.Now()
	m.logger.Log(event)
}
