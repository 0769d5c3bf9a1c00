package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math/big"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
	"github.com/tolelom/tolstake/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it. All prefix constants must be declared
// via this function.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
var statePrefixes []string

var (
	prefixAccount  = registerPrefix("acct:")
	prefixPosition = registerPrefix("pos:")
	prefixActive   = registerPrefix("active:")
	prefixGlobal   = registerPrefix("global:")
)

var activeMarker = []byte{1}

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
//
// A StateDB is not safe for concurrent use. A fresh StateDB with an empty
// buffer reads committed state only.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.dirty, key)
	s.deleted[key] = true
}

// scan returns the merged view (DB overlaid with the write buffer) of every
// key under prefix.
func (s *StateDB) scan(prefix string) (map[string][]byte, error) {
	merged := make(map[string][]byte)
	it := s.db.NewIterator([]byte(prefix))
	for it.Next() {
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		merged[string(it.Key())] = v
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return nil, errors.Wrapf(err, "iterate %q", prefix)
	}
	for k, v := range s.dirty {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k := range s.deleted {
		delete(merged, k)
	}
	return merged, nil
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	data, err := s.get(prefixAccount + address)
	if errors.Is(err, core.ErrNotFound) {
		return core.NewAccount(address), nil
	}
	if err != nil {
		return nil, err
	}
	var acc core.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, errors.Wrap(err, "decode account")
	}
	if acc.Balance == nil {
		acc.Balance = new(big.Int)
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return errors.Wrap(err, "encode account")
	}
	s.set(prefixAccount+acc.Address, data)
	return nil
}

// ---- Position ----

func (s *StateDB) GetPosition(address string) (*core.StakingPosition, error) {
	data, err := s.get(prefixPosition + address)
	if err != nil {
		return nil, err
	}
	var pos core.StakingPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, errors.Wrap(err, "decode position")
	}
	if pos.StakeAmount == nil {
		pos.StakeAmount = new(big.Int)
	}
	return &pos, nil
}

func (s *StateDB) SetPosition(address string, pos *core.StakingPosition) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return errors.Wrap(err, "encode position")
	}
	s.set(prefixPosition+address, data)
	return nil
}

func (s *StateDB) DeletePosition(address string) error {
	s.del(prefixPosition + address)
	return nil
}

// ---- Active set ----

func (s *StateDB) IsActive(address string) (bool, error) {
	_, err := s.get(prefixActive + address)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *StateDB) AddActive(address string) error {
	s.set(prefixActive+address, activeMarker)
	return nil
}

func (s *StateDB) RemoveActive(address string) error {
	s.del(prefixActive + address)
	return nil
}

// ActiveAddresses returns the active set sorted by address.
func (s *StateDB) ActiveAddresses() ([]string, error) {
	merged, err := s.scan(prefixActive)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(merged))
	for k := range merged {
		out = append(out, strings.TrimPrefix(k, prefixActive))
	}
	sort.Strings(out)
	return out, nil
}

// ---- Globals ----

func (s *StateDB) GetGlobal(key string) ([]byte, error) {
	return s.get(prefixGlobal + key)
}

func (s *StateDB) SetGlobal(key string, value []byte) error {
	s.set(prefixGlobal+key, value)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot
// and discards it and every later snapshot.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return errors.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state:
// persisted entries under every registered prefix merged with the write
// buffer, sorted by key and length-prefix encoded. It does not flush.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		part, err := s.scan(prefix)
		if err != nil {
			return ""
		}
		for k, v := range part {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
		buf.Write(lenBuf[:])
		buf.WriteString(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// batch and then clears it.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "write state batch")
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
