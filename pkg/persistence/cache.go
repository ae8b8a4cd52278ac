package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheVersion is the current version of the cache file format.
const CacheVersion = 1

// CachedServer is the durable record of the last successfully connected
// server. The cache holds at most one record; every new successful
// connection overwrites it (last-writer-wins).
type CachedServer struct {
	// Host is the server IP address or hostname.
	Host string `json:"host"`

	// Port is the gateway port.
	Port int `json:"port"`

	// Name is the display name, if any.
	Name string `json:"name,omitempty"`

	// Method records how the server was originally discovered.
	Method string `json:"method"`

	// DiscoveredAt is when the server was originally discovered.
	DiscoveredAt time.Time `json:"discovered_at"`

	// Metadata carries free-form string keys from discovery.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// cacheFile is the on-disk envelope for the cached server record.
type cacheFile struct {
	// Version is the cache file format version.
	Version int `json:"version"`

	// SavedAt is when the record was written.
	SavedAt time.Time `json:"saved_at"`

	// Server is the cached record.
	Server *CachedServer `json:"server"`
}

// ServerCacheStore manages persistence of the last connected server to a
// JSON file. The orchestrator is the only writer; reads may race the next
// attempt's write safely because the file holds a single record.
type ServerCacheStore struct {
	mu   sync.Mutex
	path string
}

// NewServerCacheStore creates a new server cache store.
func NewServerCacheStore(path string) *ServerCacheStore {
	return &ServerCacheStore{path: path}
}

// Path returns the cache file path.
func (s *ServerCacheStore) Path() string {
	return s.path
}

// Save persists the server record, overwriting any previous record.
func (s *ServerCacheStore) Save(server *CachedServer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file := cacheFile{
		Version: CacheVersion,
		SavedAt: time.Now(),
		Server:  server,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the cached server record.
// Returns nil, nil if the file doesn't exist or holds no record.
func (s *ServerCacheStore) Load() (*CachedServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	file := &cacheFile{}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, err
	}

	return file.Server, nil
}

// Clear removes the cache file. Clearing an absent cache is a no-op.
func (s *ServerCacheStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
