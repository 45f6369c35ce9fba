// Package store persists the social graph and nudge schedule in BadgerDB.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// EventEmitter receives change events after the batch that produced them
// commits. The trigger dispatcher implements it; tests use NoopEmitter.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	eventEmitter EventEmitter

	// maxBatchOps caps staged writes per atomic batch.
	maxBatchOps int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBatchOps overrides the per-batch write bound.
func WithMaxBatchOps(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBatchOps = n
		}
	}
}

// New creates a new Store instance with the given database path and event emitter.
func New(path string, logger *slog.Logger, emitter EventEmitter, opts ...Option) (*Store, error) {
	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil
	bopts.SyncWrites = true
	bopts.CompactL0OnClose = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if emitter == nil {
		emitter = NoopEmitter{}
	}

	s := &Store{
		db:           db,
		logger:       logger,
		eventEmitter: emitter,
		maxBatchOps:  MaxBatchOps,
	}
	for _, opt := range opts {
		opt(s)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Ping verifies the database accepts reads.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(profilePrefix))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// MaxBatchOps returns the write bound applied to every batch.
func (s *Store) MaxBatchOps() int {
	return s.maxBatchOps
}

// get retrieves a value by key.
func (s *Store) get(key string, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		return getInTxn(txn, key, dest)
	})
}

// exists checks if a key exists.
func (s *Store) exists(key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) emit(events []any) {
	for _, e := range events {
		s.eventEmitter.Emit(e)
	}
}

// getInTxn decodes the value at key, mapping a miss to ErrNotFound.
func getInTxn(txn *badger.Txn, key string, dest any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}
