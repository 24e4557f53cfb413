package storage

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	gethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// The contract state trie and the node head record share the same backend, so
// every implementation also exposes a trie database layered on top of it.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	TrieDB() *triedb.Database
	Close() error
}

// kvDatabase adapts any go-ethereum key-value store to the Database interface.
type kvDatabase struct {
	kv ethdb.KeyValueStore

	once   sync.Once
	trieDB *triedb.Database
}

func (db *kvDatabase) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return errors.New("storage: empty key")
	}
	return db.kv.Put(key, value)
}

func (db *kvDatabase) Get(key []byte) ([]byte, error) {
	ok, err := db.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	value, err := db.kv.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (db *kvDatabase) Delete(key []byte) error {
	return db.kv.Delete(key)
}

// TrieDB returns the hash-scheme trie database bound to this store. The handle
// is created lazily and shared by every trie opened on the store.
func (db *kvDatabase) TrieDB() *triedb.Database {
	db.once.Do(func() {
		db.trieDB = triedb.NewDatabase(rawdb.NewDatabase(db.kv), triedb.HashDefaults)
	})
	return db.trieDB
}

// --- In-Memory DB (for testing) ---

// MemDB keeps everything in process memory. State is lost on Close.
type MemDB struct {
	kvDatabase
}

func NewMemDB() *MemDB {
	return &MemDB{kvDatabase: kvDatabase{kv: memorydb.New()}}
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() error {
	return db.kv.Close()
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	kvDatabase
	ldb *gethleveldb.Database
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	ldb, err := gethleveldb.NewCustom(path, "escrow/db/", func(options *opt.Options) {
		options.ErrorIfMissing = false
		options.NoSync = false
	})
	if err != nil {
		return nil, err
	}
	return &LevelDB{kvDatabase: kvDatabase{kv: ldb}, ldb: ldb}, nil
}

// Close closes the database connection.
func (db *LevelDB) Close() error {
	return db.ldb.Close()
}
