// Package config holds the process-wide, mutex-guarded configuration a
// transport loop re-reads on every iteration (§5, §6 ConfigStore).
package config

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"

	"github.com/damianoneill/screenstream/internal/codec"
)

// TargetKind distinguishes the two transports a Config.Target may name.
type TargetKind uint8

const (
	// TargetWifi means Target.Address is a WebSocket URL.
	TargetWifi TargetKind = iota
	// TargetUSB means Target.Address is a serial device path.
	TargetUSB
)

// Target names the transport and endpoint a host loop should bind to.
type Target struct {
	Kind    TargetKind
	Address string
}

// Geometry is the device's logical display size, the (w,h) the host
// resizes every captured frame to before encoding.
type Geometry struct {
	Width, Height int
}

// Config is the set of values a host transport loop reads from its
// Store: Target and Geometry on every iteration, KeyframeInterval on
// every (re)connect. DelayMS is stored and persisted but not read by
// either host loop. Zero value is not meaningful on its own; use
// Defaults.
type Config struct {
	Target           Target
	KeyframeInterval uint32
	DelayMS          int
	Geometry         Geometry
}

// Defaults returns the configuration used when no value has been set
// explicitly, mirroring the encoder's own DefaultKeyframeInterval.
func Defaults() Config {
	return Config{
		Target:           Target{Kind: TargetWifi, Address: "ws://localhost:8080/stream"},
		KeyframeInterval: codec.DefaultKeyframeInterval,
		DelayMS:          1,
		Geometry:         Geometry{Width: 240, Height: 240},
	}
}

// Store is a mutex-guarded Config with optional file-backed JSON
// persistence, the ConfigStore collaborator of §6.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string
}

// NewStore creates a Store seeded with Defaults merged under any value
// already present at path (if path is non-empty and the file exists).
// A Store with an empty path is memory-only.
func NewStore(path string) (*Store, error) {
	s := &Store{cfg: Defaults(), path: path}
	if path == "" {
		return s, nil
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "config: load")
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var loaded Config
	if err := json.Unmarshal(b, &loaded); err != nil {
		return errors.Wrap(err, "config: unmarshal")
	}
	merged := Defaults()
	if err := mergo.Merge(&merged, loaded, mergo.WithOverride); err != nil {
		return errors.Wrap(err, "config: merge")
	}
	s.cfg = merged
	return nil
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the current configuration and, if the Store was opened
// with a path, persists it.
func (s *Store) Set(cfg Config) error {
	s.mu.Lock()
	s.cfg = cfg
	path := s.path
	s.mu.Unlock()

	if path == "" {
		return nil
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "config: marshal")
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return errors.Wrap(err, "config: write")
	}
	return nil
}
