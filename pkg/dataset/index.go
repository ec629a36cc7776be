package dataset

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

type indexEntry struct {
	ID      string    `json:"id"`
	Project string    `json:"project"`
	Name    string    `json:"name"`
	Version string    `json:"version"`
	Path    string    `json:"path"`
	Fetched time.Time `json:"fetched"`
}

// index records which dataset versions are present in the local cache.
type index struct {
	db *leveldb.DB
}

func openIndex(path string) (*index, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &index{db: db}, nil
}

func (i *index) get(id string) (*indexEntry, error) {
	data, err := i.db.Get([]byte("dataset/"+id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	entry := &indexEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (i *index) put(entry indexEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return i.db.Put([]byte("dataset/"+entry.ID), data, nil)
}

func (i *index) remove(id string) error {
	return i.db.Delete([]byte("dataset/"+id), nil)
}

func (i *index) close() error {
	return i.db.Close()
}
