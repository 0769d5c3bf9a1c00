package storage

import (
	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
)

// BadgerDB implements DB using BadgerDB v3.
type BadgerDB struct {
	db *badger.DB
}

// NewBadgerDB opens (or creates) a Badger database in dir.
func NewBadgerDB(dir string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger %q", dir)
	}
	return &BadgerDB{db: db}, nil
}

func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrNotFound
	}
	return val, err
}

func (b *BadgerDB) Set(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *BadgerDB) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// NewIterator reads the whole prefix range inside one read transaction, so the
// returned iterator sees a consistent view and holds no badger resources.
func (b *BadgerDB) NewIterator(prefix []byte) Iterator {
	var pairs []kvPair
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pairs = append(pairs, kvPair{k: item.KeyCopy(nil), v: v})
		}
		return nil
	})
	return &sliceIterator{pairs: pairs, idx: -1, err: err}
}

func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{db: b.db}
}

func (b *BadgerDB) Close() error {
	return b.db.Close()
}

type badgerOp struct {
	key   []byte
	value []byte // nil means delete
}

// badgerBatch applies its ops in a single read-write transaction.
type badgerBatch struct {
	db  *badger.DB
	ops []badgerOp
}

func (bb *badgerBatch) Set(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	bb.ops = append(bb.ops, badgerOp{key: append([]byte(nil), key...), value: v})
}

func (bb *badgerBatch) Delete(key []byte) {
	bb.ops = append(bb.ops, badgerOp{key: append([]byte(nil), key...)})
}

func (bb *badgerBatch) Reset() { bb.ops = nil }

func (bb *badgerBatch) Write() error {
	return bb.db.Update(func(txn *badger.Txn) error {
		for _, op := range bb.ops {
			var err error
			if op.value == nil {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
