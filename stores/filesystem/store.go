package filesystem

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Each state key becomes one
// file under basePath.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// keyPath maps a state key to a file name. Keys are namespaced with ':',
// which is not portable in file names.
func (s *fsStore) keyPath(key string) string {
	return filepath.Join(s.basePath, strings.ReplaceAll(key, ":", "_")+".json")
}

func (s *fsStore) Load(ctx context.Context, key string) ([]byte, error) {
	filePath := s.keyPath(key)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		logrus.WithError(err).WithField("path", filePath).Error("Failed to read state file")
		return nil, err
	}
	return data, nil
}

func (s *fsStore) Store(ctx context.Context, key string, value []byte) error {
	filePath := s.keyPath(key)
	log := logrus.WithFields(logrus.Fields{
		"key":  key,
		"path": filePath,
	})

	if err := os.WriteFile(filePath, value, 0644); err != nil {
		log.WithError(err).Error("Failed to write state file")
		return err
	}
	log.Debug("State entry written")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("key", key).Error("Failed to delete state file")
		return err
	}
	return nil
}

func (s *fsStore) Close() error {
	return nil
}
