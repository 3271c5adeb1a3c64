package storage

import (
	"github.com/golang/snappy"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/probeum/spvnode/log"
)

// LevelDB is the on-disk KeyValueStore, grounded on the teacher's
// probedb/leveldb package (leveldb.Open + storage.NewMemStorage for tests,
// storage.OpenFile for disk).
type LevelDB struct {
	db  *leveldb.DB
	log log.Logger
}

// Open opens (creating if necessary) a LevelDB store at path. An empty
// path opens an in-memory store, matching spec §6's "data_path: filesystem
// path (or in-memory marker)".
func Open(path string) (*LevelDB, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db, log: log.New("module", "leveldb")}, nil
}

func (d *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := d.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snappy.Decode(nil, v)
}

func (d *LevelDB) Has(key []byte) (bool, error) {
	ok, err := d.db.Has(key, nil)
	if err != nil && err != leveldb.ErrNotFound {
		return false, err
	}
	return ok, nil
}

func (d *LevelDB) Put(key, value []byte) error {
	return d.db.Put(key, snappy.Encode(nil, value), nil)
}

func (d *LevelDB) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

func (d *LevelDB) Close() error {
	return d.db.Close()
}

func (d *LevelDB) NewIterator(prefix []byte) Iterator {
	return &levelIterator{it: d.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

type levelIterator struct {
	it iterator
}

// iterator narrows goleveldb's iterator.Iterator to what this package uses.
type iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

func (i *levelIterator) Next() bool      { return i.it.Next() }
func (i *levelIterator) Release()        { i.it.Release() }
func (i *levelIterator) Key() []byte     { return cloneBytes(i.it.Key()) }
func (i *levelIterator) Value() []byte {
	v, err := snappy.Decode(nil, i.it.Value())
	if err != nil {
		return nil
	}
	return v
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// NewTransaction opens a goleveldb transaction: a write batch that is
// atomic with Commit and a no-op if Discarded or dropped, per the store
// interface contract in spec §6.
func (d *LevelDB) NewTransaction() Transaction {
	tx, err := d.db.OpenTransaction()
	if err != nil {
		// goleveldb transactions can fail to open only on a closed or
		// corrupt store; fall back to a batch that always fails Commit so
		// the caller's rollback-on-drop contract still holds.
		return &failedTransaction{err: err}
	}
	return &levelTransaction{tx: tx}
}

type levelTransaction struct {
	tx        *leveldb.Transaction
	discarded bool
}

func (t *levelTransaction) Put(key, value []byte) error {
	return t.tx.Put(key, snappy.Encode(nil, value), nil)
}

func (t *levelTransaction) Delete(key []byte) error {
	return t.tx.Delete(key, nil)
}

func (t *levelTransaction) Commit() error {
	if t.discarded {
		return errors.ErrClosed
	}
	return t.tx.Commit()
}

func (t *levelTransaction) Discard() {
	if t.discarded {
		return
	}
	t.discarded = true
	t.tx.Discard()
}

type failedTransaction struct{ err error }

func (t *failedTransaction) Put(key, value []byte) error { return t.err }
func (t *failedTransaction) Delete(key []byte) error     { return t.err }
func (t *failedTransaction) Commit() error               { return t.err }
func (t *failedTransaction) Discard()                    {}
