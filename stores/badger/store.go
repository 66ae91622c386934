package badger

import (
	"context"
	"log"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

type badgerStore struct {
	db *badger.DB
}

// NewStore creates a new Badger-based store rooted at path.
func NewStore(path string) *badgerStore {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("failed to open badger database: %v", err)
	}
	return &badgerStore{db: db}
}

func (s *badgerStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		logrus.WithError(err).WithField("key", key).Error("Failed to load state entry")
		return nil, err
	}
	return value, nil
}

func (s *badgerStore) Store(ctx context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to store state entry")
		return err
	}
	logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(value),
	}).Debug("State entry stored")
	return nil
}

func (s *badgerStore) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
