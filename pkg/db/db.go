package db

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

type Client struct {
	BoltDB *bbolt.DB
}

// DefaultOptions returns the bbolt options shared by every database of the service.
func DefaultOptions() *bbolt.Options {
	return &bbolt.Options{
		PageSize:     16 * 1024,
		NoGrowSync:   true,
		FreelistType: bbolt.FreelistArrayType,
	}
}

// Open opens (and creates when missing) a bbolt database at dbPath.
func Open(dbPath string) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Client{BoltDB: db}, nil
}

func (c *Client) Close() error {
	return c.BoltDB.Close()
}
