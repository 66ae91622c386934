package stores

import (
	"excalisave/core"
	"excalisave/stores/aws"
	"excalisave/stores/badger"
	"excalisave/stores/filesystem"
	"excalisave/stores/memory"
	"excalisave/stores/sqlite"
	"os"

	"github.com/sirupsen/logrus"
)

func GetStore() core.StateStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.StateStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data" // Default path
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "excalisave.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "badger":
		dbPath := os.Getenv("BADGER_PATH")
		if dbPath == "" {
			dbPath = "./excalisave-badger"
		}
		storageField["dbPath"] = dbPath
		store = badger.NewStore(dbPath)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = bucketName
		store = aws.NewStore(bucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
