// Package storage provides badger-backed persistence for the engine's
// learned state (the correction-history table) across process restarts,
// since a fresh process otherwise starts every correction value at zero.
package storage

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
)

const keyCorrectionHistory = "correction_history"

// LearningStore wraps a BadgerDB instance holding the engine's learned
// correction-history table.
type LearningStore struct {
	db *badger.DB
}

// NewLearningStore opens (or creates) the learning database in the
// platform's standard data directory.
func NewLearningStore() (*LearningStore, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &LearningStore{db: db}, nil
}

// Close closes the database.
func (s *LearningStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveCorrectionHistory persists a correction-history snapshot.
func (s *LearningStore) SaveCorrectionHistory(table []int16) error {
	buf := make([]byte, len(table)*2)
	for i, v := range table {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyCorrectionHistory), buf)
	})
}

// LoadCorrectionHistory loads a previously saved correction-history
// snapshot, or (nil, nil) if none was ever saved.
func (s *LearningStore) LoadCorrectionHistory() ([]int16, error) {
	var table []int16

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyCorrectionHistory))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			table = make([]int16, len(val)/2)
			for i := range table {
				table[i] = int16(binary.LittleEndian.Uint16(val[i*2:]))
			}
			return nil
		})
	})

	return table, err
}
