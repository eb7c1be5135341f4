package llm

import (
	"sync"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/log"
)

var logger = log.GetLogger("LLM")

// Registry holds every provider the binary was built with, regardless of
// which one is active.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// GlobalRegistry is the process-wide provider registry.
var GlobalRegistry = &Registry{}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func (r *Registry) GetAll() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// ActiveCell holds the single provider currently selected by
// ConfigValue.LLMProvider, swapped under a reader-writer lock whenever
// config.Manager fans out a change.
type ActiveCell struct {
	mu     sync.RWMutex
	active Provider
}

func NewActiveCell() *ActiveCell {
	return &ActiveCell{}
}

// Get returns the current active provider, or nil if none is configured.
func (c *ActiveCell) Get() Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// ApplyConfig is registered as a config.Subscriber: it looks up
// cv.LLMProvider in the registry, configures it with cv.LLMConfig, and
// swaps it in as the active provider. A lookup or configure failure leaves
// the previous active provider in place and logs a warning rather than
// leaving the cell empty.
func (c *ActiveCell) ApplyConfig(cv config.ConfigValue) {
	p := GlobalRegistry.Get(cv.LLMProvider)
	if p == nil {
		logger.Warn().Str("provider", cv.LLMProvider).Msg("unknown llm_provider, keeping previous active provider")
		return
	}

	if len(cv.LLMConfig) > 0 {
		if err := p.Configure(cv.LLMConfig); err != nil {
			logger.Warn().Err(err).Str("provider", cv.LLMProvider).Msg("failed to configure provider, keeping previous active provider")
			return
		}
	}

	c.mu.Lock()
	c.active = p
	c.mu.Unlock()

	logger.Info().Str("provider", cv.LLMProvider).Msg("active llm provider swapped")
}
