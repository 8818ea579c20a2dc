package store

import "github.com/rs/zerolog"

// Config is the environment derived configuration of the backing store
type Config struct {
	URL      string
	Token    string
	Disabled bool
}

// Enabled is true only when both URL and token are present and the store
// was not explicitly disabled
func (c Config) Enabled() bool {
	return c.URL != "" && c.Token != "" && !c.Disabled
}

/* Handle is the single, process-wide view of the backing store
 * "enabled" is fixed at construction, "healthy" lives in Health and only degrades
 * Uses pointer semantics as it's shared by every cache and limiter
 */
type Handle struct {
	enabled bool
	backend Backend
	health  *Health
}

// New builds the handle from configuration. Missing credentials and an
// unusable URL both yield a disabled handle that reports Enabled() == false
// forever; the latter is logged as a warning.
func New(cfg Config, logger zerolog.Logger) *Handle {
	if !cfg.Enabled() {
		logger.Info().Bool("disabled_flag", cfg.Disabled).Msg("backing store disabled, using in-process fallback")
		return Disabled()
	}
	backend, err := NewRedis(cfg.URL, cfg.Token)
	if err != nil {
		logger.Warn().Err(err).Msg("backing store misconfigured, using in-process fallback")
		return Disabled()
	}
	return NewHandle(backend, NewHealth("redis", true, logger))
}

// NewHandle wraps an existing backend. A nil backend yields a disabled handle.
func NewHandle(backend Backend, health *Health) *Handle {
	if backend == nil {
		return Disabled()
	}
	if health == nil {
		health = NewHealth("redis", true, zerolog.Nop())
	}
	return &Handle{enabled: true, backend: backend, health: health}
}

// Disabled returns a handle with no backing store
func Disabled() *Handle {
	return &Handle{enabled: false, health: NewHealth("disabled", false, zerolog.Nop())}
}

// Enabled reports whether the store was configured at startup
func (h *Handle) Enabled() bool {
	return h != nil && h.enabled
}

// Healthy reports whether the store is still considered reachable
func (h *Handle) Healthy() bool {
	return h.Enabled() && h.health.Healthy()
}

// Available is the check every cache and limiter call makes before touching the store
func (h *Handle) Available() bool {
	return h.Healthy()
}

// Health returns the shared health flag
func (h *Handle) Health() *Health {
	if h == nil {
		return nil
	}
	return h.health
}

// KV returns the key-value side of the backend, nil when disabled
func (h *Handle) KV() KV {
	if !h.Enabled() {
		return nil
	}
	return h.backend
}

// Counter returns the counter side of the backend, nil when disabled
func (h *Handle) Counter() Counter {
	if !h.Enabled() {
		return nil
	}
	return h.backend
}

// Backend returns the raw backend, nil when disabled
func (h *Handle) Backend() Backend {
	if !h.Enabled() {
		return nil
	}
	return h.backend
}

// Close releases the backend connection pool
func (h *Handle) Close() error {
	if !h.Enabled() {
		return nil
	}
	return h.backend.Close()
}
