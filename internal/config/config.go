package config

import (
	"errors"
	"sync"
	"time"

	"hytun/internal/storage"
	"hytun/internal/storage/jsonfile"
)

const documentName = "settings"

// Settings is the flat manager configuration document. Thresholds that
// historically drifted between releases (lockout window, session lifetime)
// live here rather than in code.
type Settings struct {
	WebHost string `json:"web_host"`
	WebPort int    `json:"web_port"`

	LogLevel         string `json:"log_level"`
	HysteriaLogLevel string `json:"hysteria_log_level"`

	ServiceName       string `json:"service_name"`
	CommandTimeoutSec int    `json:"command_timeout_sec"`

	LockoutThreshold int `json:"lockout_threshold"`
	LockoutMinutes   int `json:"lockout_minutes"`
	SessionTTLHours  int `json:"session_ttl_hours"`

	MonitorIntervalSec   int `json:"monitor_interval_sec"`
	HistoryRetentionDays int `json:"history_retention_days"`

	SubscriptionRefreshHours int `json:"subscription_refresh_hours"`
}

// Default returns the settings used on first run.
func Default() Settings {
	return Settings{
		WebHost:                  "0.0.0.0",
		WebPort:                  8080,
		LogLevel:                 "info",
		HysteriaLogLevel:         "info",
		ServiceName:              "hysteria2-client",
		CommandTimeoutSec:        10,
		LockoutThreshold:         5,
		LockoutMinutes:           15,
		SessionTTLHours:          24,
		MonitorIntervalSec:       5,
		HistoryRetentionDays:     30,
		SubscriptionRefreshHours: 12,
	}
}

// CommandTimeout returns the external command timeout as a duration.
func (s Settings) CommandTimeout() time.Duration {
	return time.Duration(s.CommandTimeoutSec) * time.Second
}

// LockoutDuration returns the account lockout window.
func (s Settings) LockoutDuration() time.Duration {
	return time.Duration(s.LockoutMinutes) * time.Minute
}

// SessionTTL returns the absolute session lifetime.
func (s Settings) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLHours) * time.Hour
}

// MonitorInterval returns the status poll interval.
func (s Settings) MonitorInterval() time.Duration {
	return time.Duration(s.MonitorIntervalSec) * time.Second
}

// SubscriptionRefreshInterval returns how often subscription sources are
// re-imported automatically.
func (s Settings) SubscriptionRefreshInterval() time.Duration {
	return time.Duration(s.SubscriptionRefreshHours) * time.Hour
}

// Manager owns the settings document: an in-memory mirror guarded by a
// mutex, persisted wholesale on every update.
type Manager struct {
	mu    sync.RWMutex
	store storage.DocumentStore
	cur   Settings
}

// NewManager loads settings from the store, writing defaults on first run.
func NewManager(store storage.DocumentStore) (*Manager, error) {
	m := &Manager{store: store}

	var s Settings
	err := store.Load(documentName, &s)
	switch {
	case err == nil:
		m.cur = s.withDefaults()
	case errors.Is(err, jsonfile.ErrNotExist):
		m.cur = Default()
		if err := store.Save(documentName, m.cur); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return m, nil
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Update replaces the settings and persists them.
func (m *Manager) Update(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s = s.withDefaults()
	if err := m.store.Save(documentName, s); err != nil {
		return err
	}
	m.cur = s
	return nil
}

// withDefaults fills zero values so documents from older releases keep
// working after new fields are added.
func (s Settings) withDefaults() Settings {
	d := Default()
	if s.WebHost == "" {
		s.WebHost = d.WebHost
	}
	if s.WebPort == 0 {
		s.WebPort = d.WebPort
	}
	if s.LogLevel == "" {
		s.LogLevel = d.LogLevel
	}
	if s.HysteriaLogLevel == "" {
		s.HysteriaLogLevel = d.HysteriaLogLevel
	}
	if s.ServiceName == "" {
		s.ServiceName = d.ServiceName
	}
	if s.CommandTimeoutSec <= 0 {
		s.CommandTimeoutSec = d.CommandTimeoutSec
	}
	if s.LockoutThreshold <= 0 {
		s.LockoutThreshold = d.LockoutThreshold
	}
	if s.LockoutMinutes <= 0 {
		s.LockoutMinutes = d.LockoutMinutes
	}
	if s.SessionTTLHours <= 0 {
		s.SessionTTLHours = d.SessionTTLHours
	}
	if s.MonitorIntervalSec <= 0 {
		s.MonitorIntervalSec = d.MonitorIntervalSec
	}
	if s.HistoryRetentionDays <= 0 {
		s.HistoryRetentionDays = d.HistoryRetentionDays
	}
	if s.SubscriptionRefreshHours <= 0 {
		s.SubscriptionRefreshHours = d.SubscriptionRefreshHours
	}
	return s
}
