package costs

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const overridesFile = "cost-overrides.json"

// Store holds manual cost price overrides in a flat JSON file, keyed by
// variation id. The file never touches the POS system and is read by the
// inventory endpoint at serve time, not by the sync path.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a cost override store rooted at dataDir
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{path: filepath.Join(dataDir, overridesFile)}, nil
}

// Read returns all overrides. A missing or unreadable file is an empty map.
func (s *Store) Read() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Set stores an override for one variation
func (s *Store) Set(id string, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overrides := s.read()
	overrides[id] = cost
	return s.write(overrides)
}

// Remove deletes the override for one variation, if present
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overrides := s.read()
	delete(overrides, id)
	return s.write(overrides)
}

func (s *Store) read() map[string]float64 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error reading cost overrides: %v", err)
		}
		return map[string]float64{}
	}

	overrides := map[string]float64{}
	if err := json.Unmarshal(data, &overrides); err != nil {
		log.Printf("Error parsing cost overrides: %v", err)
		return map[string]float64{}
	}
	return overrides
}

func (s *Store) write(overrides map[string]float64) error {
	data, err := json.MarshalIndent(overrides, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cost overrides: %w", err)
	}
	return nil
}
