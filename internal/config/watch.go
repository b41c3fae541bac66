package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"fincore/internal/logger"
)

// Holder publishes the current configuration to request handlers. Reloads
// replace credentials and preference defaults; the registry built from the
// first configuration is never rebuilt.
type Holder struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewHolder(cfg *Config) *Holder {
	if cfg == nil {
		cfg = Default()
	}
	return &Holder{cfg: cfg}
}

func (h *Holder) Current() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *Holder) Set(cfg *Config) {
	if cfg == nil {
		return
	}
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

// Watch reloads path whenever it changes on disk and hands the new
// configuration to fn. Invalid files are logged and skipped.
func Watch(path string, fn func(*Config)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Warnf("config reload %s failed: %v", e.Name, err)
			return
		}
		logger.Infof("config reloaded from %s", e.Name)
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}
