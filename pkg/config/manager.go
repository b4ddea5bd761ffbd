package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ConfigReloadedMessage is logged after a changed config file was loaded.
const ConfigReloadedMessage = "Slug config reloaded"

// DefaultDebounceDelay groups the burst of events a single save produces into one reload.
const DefaultDebounceDelay = 500 * time.Millisecond

// Manager holds the current configuration loaded from a file and reloads it when the
// file changes. Readers always see a complete, validated configuration.
type Manager[T any] struct {
	mu            sync.RWMutex
	config        *T
	configPath    string
	loadFunc      func(string) (*T, error)
	logger        *logrus.Logger
	watcher       *fsnotify.Watcher
	callbacks     []func(*T)
	debounceTimer *time.Timer
	debounceDelay time.Duration
	lastHash      string
}

// NewManager loads the configuration at configPath with loadFunc.
func NewManager[T any](configPath string, loadFunc func(string) (*T, error), logger *logrus.Logger, debounceDelay time.Duration) (*Manager[T], error) {
	config, err := loadFunc(configPath)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &Manager[T]{
		config:        config,
		configPath:    configPath,
		loadFunc:      loadFunc,
		logger:        logger,
		watcher:       watcher,
		debounceDelay: debounceDelay,
	}
	// a missing file is fine for managers built around a static config
	m.lastHash, _ = fileHash(configPath)
	return m, nil
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the current configuration.
func (m *Manager[T]) Get() *T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Path returns the watched configuration file.
func (m *Manager[T]) Path() string {
	return m.configPath
}

// OnUpdate registers a callback receiving every reloaded configuration.
func (m *Manager[T]) OnUpdate(callback func(*T)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// reloadIfChanged loads the file when its content differs from the last loaded one.
// A file that cannot be read or loaded leaves the current configuration in place.
func (m *Manager[T]) reloadIfChanged() {
	logger := m.logger.WithField("config_path", m.configPath)

	hash, err := fileHash(m.configPath)
	if err != nil {
		logger.WithError(err).Error("Failed to read config file")
		return
	}

	m.mu.RLock()
	unchanged := hash == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		logger.Debug("Config file content unchanged, skipping reload")
		return
	}

	config, err := m.loadFunc(m.configPath)
	if err != nil {
		logger.WithError(err).Error("Failed to reload config, keeping the current one")
		return
	}

	m.mu.Lock()
	m.config = config
	m.lastHash = hash
	callbacks := append([]func(*T){}, m.callbacks...)
	m.mu.Unlock()

	logger.Info(ConfigReloadedMessage)
	for _, callback := range callbacks {
		callback(config)
	}
}

// Watch reloads the configuration whenever its file changes, until ctx is done.
// The parent directory is watched so that editors replacing the file by rename and
// ConfigMap symlink swaps are both seen.
func (m *Manager[T]) Watch(ctx context.Context) error {
	if err := m.watcher.Add(filepath.Dir(m.configPath)); err != nil {
		return err
	}
	target := filepath.Clean(m.configPath)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-m.watcher.Events:
				if !ok {
					return
				}
				if !m.affects(event, target) {
					continue
				}
				m.logger.WithFields(logrus.Fields{
					"config_path": m.configPath,
					"event":       event.Op.String(),
				}).Debug("Config file changed, scheduling reload")
				m.scheduleReload()
			case err, ok := <-m.watcher.Errors:
				if !ok {
					return
				}
				m.logger.WithField("config_path", m.configPath).WithError(err).Error("Error watching config file")
			}
		}
	}()
	return nil
}

func (m *Manager[T]) affects(event fsnotify.Event, target string) bool {
	if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
		return true
	}
	return filepath.Clean(event.Name) == target && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create))
}

func (m *Manager[T]) scheduleReload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.AfterFunc(m.debounceDelay, m.reloadIfChanged)
}

// Close stops watching.
func (m *Manager[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	return m.watcher.Close()
}
