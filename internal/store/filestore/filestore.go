// Package filestore serves business configuration from YAML files.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"surveypilot/internal/model"
)

// ErrUnknownBusiness is returned for a business no loaded file describes
var ErrUnknownBusiness = errors.New("unknown business")

// BusinessFile is the on-disk layout of one business configuration
type BusinessFile struct {
	BusinessID string                    `yaml:"businessId"`
	Rules      []model.CombinationRule   `yaml:"rules"`
	Triggers   []model.TriggerDefinition `yaml:"triggers"`
	Topics     []model.TopicGroup        `yaml:"topics"`
	Questions  []model.CandidateQuestion `yaml:"questions"`
}

// Store holds parsed business files in memory
type Store struct {
	mu         sync.RWMutex
	businesses map[string]*BusinessFile
}

// New creates an empty store
func New() *Store {
	return &Store{businesses: make(map[string]*BusinessFile)}
}

// Load reads one YAML file, or every *.yaml / *.yml file of a directory
func Load(path string) (*Store, error) {
	s := New()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if err := s.LoadFile(path); err != nil {
			return nil, err
		}
		return s, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if err := s.LoadFile(filepath.Join(path, e.Name())); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadFile parses a business file and replaces any earlier copy of it
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	bf, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	s.Put(bf)
	return nil
}

// Parse decodes a business file and stamps its business ID on every entry
func Parse(data []byte) (*BusinessFile, error) {
	var bf BusinessFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, err
	}
	if bf.BusinessID == "" {
		return nil, errors.New("businessId is required")
	}

	for i := range bf.Rules {
		bf.Rules[i].BusinessID = bf.BusinessID
	}
	for i := range bf.Triggers {
		bf.Triggers[i].BusinessID = bf.BusinessID
	}
	for i := range bf.Topics {
		bf.Topics[i].BusinessID = bf.BusinessID
	}
	for i := range bf.Questions {
		bf.Questions[i].BusinessID = bf.BusinessID
	}
	sort.SliceStable(bf.Topics, func(i, j int) bool {
		return bf.Topics[i].DisplayOrder < bf.Topics[j].DisplayOrder
	})
	return &bf, nil
}

// Put registers a business file
func (s *Store) Put(bf *BusinessFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[bf.BusinessID] = bf
}

// Businesses lists the loaded business IDs in order
func (s *Store) Businesses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.businesses))
	for id := range s.businesses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the business file, or ErrUnknownBusiness
func (s *Store) Get(businessID string) (*BusinessFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bf, ok := s.businesses[businessID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBusiness, businessID)
	}
	return bf, nil
}

func (s *Store) Rules(_ context.Context, businessID string) ([]model.CombinationRule, error) {
	bf, err := s.Get(businessID)
	if err != nil {
		return nil, err
	}
	return append([]model.CombinationRule(nil), bf.Rules...), nil
}

func (s *Store) Triggers(_ context.Context, businessID string) ([]model.TriggerDefinition, error) {
	bf, err := s.Get(businessID)
	if err != nil {
		return nil, err
	}
	return append([]model.TriggerDefinition(nil), bf.Triggers...), nil
}

func (s *Store) Topics(_ context.Context, businessID string) ([]model.TopicGroup, error) {
	bf, err := s.Get(businessID)
	if err != nil {
		return nil, err
	}
	return append([]model.TopicGroup(nil), bf.Topics...), nil
}

// Questions returns only active questions
func (s *Store) Questions(_ context.Context, businessID string) ([]model.CandidateQuestion, error) {
	bf, err := s.Get(businessID)
	if err != nil {
		return nil, err
	}
	var active []model.CandidateQuestion
	for _, q := range bf.Questions {
		if q.IsActive {
			active = append(active, q)
		}
	}
	return active, nil
}
