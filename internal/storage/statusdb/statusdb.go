// Package statusdb persists order fill status, offerer counters and
// contract-offerer nonces in a pebble key-value store. A small LRU cache
// fronts status reads since fills re-read the same hot orders.
package statusdb

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/marinerlabs/goseaport/internal/core/order"
	"github.com/marinerlabs/goseaport/internal/core/settle"
)

var ErrDBClosed = errors.New("status database is closed")

// Key prefixes. Order hashes and addresses are fixed width so a prefix byte
// is enough to keep the spaces disjoint.
var (
	prefixStatus  = []byte("s/")
	prefixCounter = []byte("c/")
	prefixNonce   = []byte("n/")
)

const statusCacheSize = 4096

// Store is a pebble-backed settle.StatusStore. Writes are synced; Apply
// commits its whole change set in one batch.
type Store struct {
	mu    sync.Mutex
	db    *pebble.DB
	cache *lru.Cache[common.Hash, order.Status]
}

// Open opens (or creates) the status database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open status database: %w", err)
	}
	cache, err := lru.New[common.Hash, order.Status](statusCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func statusKey(hash common.Hash) []byte {
	return append(append([]byte{}, prefixStatus...), hash.Bytes()...)
}

func counterKey(offerer common.Address) []byte {
	return append(append([]byte{}, prefixCounter...), offerer.Bytes()...)
}

func nonceKey(offerer common.Address) []byte {
	return append(append([]byte{}, prefixNonce...), offerer.Bytes()...)
}

func (s *Store) OrderStatus(hash common.Hash) (order.Status, error) {
	if st, ok := s.cache.Get(hash); ok {
		return st, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return order.Status{}, ErrDBClosed
	}

	val, closer, err := s.db.Get(statusKey(hash))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return order.Status{}, nil
		}
		return order.Status{}, err
	}
	defer closer.Close()

	st, err := decodeStatus(val)
	if err != nil {
		return order.Status{}, fmt.Errorf("decode status for %s: %w", hash, err)
	}
	s.cache.Add(hash, st)
	return st, nil
}

func (s *Store) Counter(offerer common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBig(counterKey(offerer))
}

func (s *Store) IncrementCounter(offerer common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrDBClosed
	}

	key := counterKey(offerer)
	current, err := s.readBig(key)
	if err != nil {
		return nil, err
	}
	current.Add(current, big.NewInt(1))
	if err := s.db.Set(key, current.Bytes(), pebble.Sync); err != nil {
		return nil, err
	}
	return new(big.Int).Set(current), nil
}

func (s *Store) ContractNonce(offerer common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBig(nonceKey(offerer))
}

// Apply writes the batch atomically and drops touched hashes from the cache.
func (s *Store) Apply(changes settle.StateChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrDBClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for hash, status := range changes.Statuses {
		if err := batch.Set(statusKey(hash), encodeStatus(status), nil); err != nil {
			return err
		}
	}
	for offerer, nonce := range changes.ContractNonces {
		if err := batch.Set(nonceKey(offerer), nonce.Bytes(), nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	for hash := range changes.Statuses {
		s.cache.Remove(hash)
	}
	return nil
}

// readBig reads a big-endian integer, zero if absent. Caller holds the lock.
func (s *Store) readBig(key []byte) (*big.Int, error) {
	if s.db == nil {
		return nil, ErrDBClosed
	}
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return new(big.Int), nil
		}
		return nil, err
	}
	defer closer.Close()
	return new(big.Int).SetBytes(val), nil
}

const (
	flagValidated = 1 << 0
	flagCancelled = 1 << 1

	// Fraction words are 15 bytes: numerators and denominators never
	// exceed 2^120 - 1.
	fractionWidth = 15
)

// encodeStatus packs a status as one flag byte, optionally followed by the
// fixed-width numerator and denominator.
func encodeStatus(st order.Status) []byte {
	var flags byte
	if st.Validated {
		flags |= flagValidated
	}
	if st.Cancelled {
		flags |= flagCancelled
	}

	if st.Numerator == nil || st.Denominator == nil {
		return []byte{flags}
	}

	out := make([]byte, 1+2*fractionWidth)
	out[0] = flags
	st.Numerator.FillBytes(out[1 : 1+fractionWidth])
	st.Denominator.FillBytes(out[1+fractionWidth:])
	return out
}

func decodeStatus(data []byte) (order.Status, error) {
	switch len(data) {
	case 1:
		return order.Status{
			Validated: data[0]&flagValidated != 0,
			Cancelled: data[0]&flagCancelled != 0,
		}, nil
	case 1 + 2*fractionWidth:
		return order.Status{
			Validated:   data[0]&flagValidated != 0,
			Cancelled:   data[0]&flagCancelled != 0,
			Numerator:   new(big.Int).SetBytes(data[1 : 1+fractionWidth]),
			Denominator: new(big.Int).SetBytes(data[1+fractionWidth:]),
		}, nil
	default:
		return order.Status{}, fmt.Errorf("malformed status record of %d bytes", len(data))
	}
}
