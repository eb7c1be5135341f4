package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/deletexiumu/screen-analyzer/log"
)

var logger = log.GetLogger("CONFIG")

// CaptureSettings controls the Capture Engine.
type CaptureSettings struct {
	Resolution           string `json:"resolution"`             // 1080p | 2k | 4k | original
	ImageQuality         int    `json:"image_quality"`          // 50-100
	DetectBlackScreen    bool   `json:"detect_black_screen"`
	BlackScreenThreshold int    `json:"black_screen_threshold"` // 0-255
	SkipWritingBlack     bool   `json:"skip_writing_black"`
	ExcludedDisplays     []int  `json:"excluded_displays,omitempty"`
}

// VideoConfig controls the Video Synthesizer.
type VideoConfig struct {
	AutoGenerate     bool `json:"auto_generate"`
	SpeedMultiplier  int  `json:"speed_multiplier"` // 1-50
	Quality          int  `json:"quality"`          // 0-51 CRF
	AddTimestamp     bool `json:"add_timestamp"`
}

// LLMSettings selects and configures the active provider.
type LLMSettings struct {
	Provider string          `json:"provider"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// LoggerSettings controls the ambient logging sink.
type LoggerSettings struct {
	Level      string `json:"level"`
	BufferSize int    `json:"buffer_size"`
}

// DatabaseSettings selects the store backend.
type DatabaseSettings struct {
	Kind string `json:"kind"` // sqlite | remote-sql
	DSN  string `json:"dsn,omitempty"`
}

// ConfigValue is the full, persisted, user-mutable configuration.
type ConfigValue struct {
	RetentionDays    int              `json:"retention_days"`    // 1-30
	CaptureInterval  int              `json:"capture_interval"`  // seconds, 1-60
	SummaryInterval  int              `json:"summary_interval"`  // minutes, 5-60
	CaptureSettings  CaptureSettings  `json:"capture_settings"`
	VideoConfig      VideoConfig      `json:"video_config"`
	LLMProvider      string           `json:"llm_provider"`
	LLMConfig        json.RawMessage  `json:"llm_config,omitempty"`
	LoggerSettings   LoggerSettings   `json:"logger_settings"`
	DatabaseSettings DatabaseSettings `json:"database_config"`
}

// Default returns the out-of-box configuration.
func Default() ConfigValue {
	return ConfigValue{
		RetentionDays:   7,
		CaptureInterval: 1,
		SummaryInterval: 15,
		CaptureSettings: CaptureSettings{
			Resolution:           "1080p",
			ImageQuality:         80,
			DetectBlackScreen:    true,
			BlackScreenThreshold: 5,
			SkipWritingBlack:     true,
		},
		VideoConfig: VideoConfig{
			AutoGenerate:    true,
			SpeedMultiplier: 10,
			Quality:         28,
			AddTimestamp:    true,
		},
		LLMProvider: "chatvision",
		LoggerSettings: LoggerSettings{
			Level:      "info",
			BufferSize: 1000,
		},
		DatabaseSettings: DatabaseSettings{Kind: "sqlite"},
	}
}

// Clone returns a deep-enough copy for safe handoff to subscribers.
func (c ConfigValue) Clone() ConfigValue {
	out := c
	if c.LLMConfig != nil {
		out.LLMConfig = append(json.RawMessage{}, c.LLMConfig...)
	}
	if c.CaptureSettings.ExcludedDisplays != nil {
		out.CaptureSettings.ExcludedDisplays = append([]int{}, c.CaptureSettings.ExcludedDisplays...)
	}
	return out
}

// ErrConfigInvalid is returned by Manager.Update when a field is out of range.
type ErrConfigInvalid struct {
	Field  string
	Reason string
}

func (e *ErrConfigInvalid) Error() string {
	return fmt.Sprintf("config invalid: %s: %s", e.Field, e.Reason)
}

// Validate enforces the typed range checks for each field.
func (c ConfigValue) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 30 {
		return &ErrConfigInvalid{"retention_days", "must be between 1 and 30"}
	}
	if c.CaptureInterval < 1 || c.CaptureInterval > 60 {
		return &ErrConfigInvalid{"capture_interval", "must be between 1 and 60 seconds"}
	}
	if c.SummaryInterval < 5 || c.SummaryInterval > 60 {
		return &ErrConfigInvalid{"summary_interval", "must be between 5 and 60 minutes"}
	}
	switch c.CaptureSettings.Resolution {
	case "1080p", "2k", "4k", "original":
	default:
		return &ErrConfigInvalid{"capture_settings.resolution", "must be one of 1080p, 2k, 4k, original"}
	}
	if c.CaptureSettings.ImageQuality < 50 || c.CaptureSettings.ImageQuality > 100 {
		return &ErrConfigInvalid{"capture_settings.image_quality", "must be between 50 and 100"}
	}
	if c.CaptureSettings.BlackScreenThreshold < 0 || c.CaptureSettings.BlackScreenThreshold > 255 {
		return &ErrConfigInvalid{"capture_settings.black_screen_threshold", "must be between 0 and 255"}
	}
	if c.VideoConfig.SpeedMultiplier < 1 || c.VideoConfig.SpeedMultiplier > 50 {
		return &ErrConfigInvalid{"video_config.speed_multiplier", "must be between 1 and 50"}
	}
	if c.VideoConfig.Quality < 0 || c.VideoConfig.Quality > 51 {
		return &ErrConfigInvalid{"video_config.quality", "must be between 0 and 51"}
	}
	if c.LLMProvider == "" {
		return &ErrConfigInvalid{"llm_provider", "must not be empty"}
	}
	return nil
}

// Subscriber receives the new configuration whenever Manager.Update succeeds.
type Subscriber func(ConfigValue)

// Manager owns the single authoritative ConfigValue and persists it to
// config.json with an atomic write (write to temp, fsync, rename). It also
// watches config.json for out-of-process edits via fsnotify.
type Manager struct {
	mu          sync.RWMutex
	path        string
	value       ConfigValue
	subscribers []Subscriber
	watcher     *fsnotify.Watcher
	applying    bool // true while Update's own write is in flight, to ignore our own fsnotify event
}

// NewManager loads config.json if present, otherwise writes out defaults.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}

	if data, err := os.ReadFile(path); err == nil {
		var v ConfigValue
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("existing %s is invalid: %w", path, err)
		}
		m.value = v
	} else if os.IsNotExist(err) {
		m.value = Default()
		if err := m.writeFile(m.value); err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}

	return m, nil
}

// Get returns the current configuration.
func (m *Manager) Get() ConfigValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value.Clone()
}

// Subscribe registers a callback invoked with the new value on every
// successful Update. Capture, Scheduler, and the LLM active-provider cell
// all subscribe at startup.
func (m *Manager) Subscribe(fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Update validates, persists, and fans out a new configuration. It never
// partially applies: on validation or write failure, the live value and the
// on-disk file are both untouched.
func (m *Manager) Update(next ConfigValue) error {
	if err := next.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.applying = true
	if err := m.writeFile(next); err != nil {
		m.applying = false
		m.mu.Unlock()
		return err
	}
	m.value = next
	m.applying = false
	subs := append([]Subscriber{}, m.subscribers...)
	m.mu.Unlock()

	snapshot := next.Clone()
	for _, fn := range subs {
		fn(snapshot)
	}
	return nil
}

// writeFile persists cfg atomically: write to a sibling temp file, fsync,
// close, then rename over the target. A crash mid-write leaves the old
// config.json intact.
func (m *Manager) writeFile(cfg ConfigValue) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	tmp = nil

	// User-only permissions: credentials may live inside llm_config.
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpPath, m.path)
}

// WatchExternalEdits starts an fsnotify watch on config.json's directory so
// edits made outside this process (e.g. by a text editor) are picked up.
// Writes made by Update itself are suppressed via the applying flag.
func (m *Manager) WatchExternalEdits() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher

	go func() {
		for event := range watcher.Events {
			if filepath.Clean(event.Name) != filepath.Clean(m.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			m.mu.RLock()
			applying := m.applying
			m.mu.RUnlock()
			if applying {
				continue
			}

			m.reloadFromDisk()
		}
	}()

	return nil
}

func (m *Manager) reloadFromDisk() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		logger.Warn().Err(err).Str("path", m.path).Msg("failed to reload config after external edit")
		return
	}

	var v ConfigValue
	if err := json.Unmarshal(data, &v); err != nil {
		logger.Warn().Err(err).Str("path", m.path).Msg("external config edit is not valid JSON, ignoring")
		return
	}
	if err := v.Validate(); err != nil {
		logger.Warn().Err(err).Str("path", m.path).Msg("external config edit failed validation, ignoring")
		return
	}

	m.mu.Lock()
	m.value = v
	subs := append([]Subscriber{}, m.subscribers...)
	m.mu.Unlock()

	logger.Info().Str("path", m.path).Msg("reloaded config after external edit")
	snapshot := v.Clone()
	for _, fn := range subs {
		fn(snapshot)
	}
}

// Close stops the fsnotify watch.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
