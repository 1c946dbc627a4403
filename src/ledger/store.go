package ledger

import (
	"encoding/json"
	"fmt"
	"os"

	logger "github.com/sirupsen/logrus"

	"cuanbot/src/model"
)

// Store persists the open positions as an indented JSON array so the file
// stays human-diffable. There is a single writer: the engine's cycle loop.
// Every mutation is followed by a full rewrite, so between cycles the file
// always reflects the in-memory ledger exactly.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the ledger file. A missing file is an empty ledger and is
// persisted immediately to establish it; an empty or corrupt file is an
// empty ledger, logged but never fatal.
func (s *Store) Load() ([]model.Position, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		logger.WithField("path", s.path).Info("ledger file absent, starting empty")
		if err := s.Save(nil); err != nil {
			return nil, err
		}
		return []model.Position{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", s.path, err)
	}

	if len(raw) == 0 {
		logger.WithField("path", s.path).Warn("ledger file empty, starting empty")
		return []model.Position{}, nil
	}

	var positions []model.Position
	if err := json.Unmarshal(raw, &positions); err != nil {
		logger.WithError(err).WithField("path", s.path).Warn("ledger file corrupt, starting empty")
		return []model.Position{}, nil
	}

	kept := positions[:0]
	for _, p := range positions {
		if !p.Amount.IsPositive() {
			logger.WithField("pair", p.Pair).Warn("dropping zero-size position from loaded ledger")
			continue
		}
		kept = append(kept, p)
	}
	return kept, nil
}

// Save rewrites the whole ledger file.
func (s *Store) Save(positions []model.Position) error {
	if positions == nil {
		positions = []model.Position{}
	}
	raw, err := json.MarshalIndent(positions, "", "    ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write ledger %s: %w", s.path, err)
	}
	return nil
}
