// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package weights

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	fetchRecordPrefix byte = 0x01
)

// FetchRecord describes a completed download of a weights file.
type FetchRecord struct {
	URL       string    `msgpack:"url"`
	Path      string    `msgpack:"path"`
	Size      int64     `msgpack:"size"`
	FetchedAt time.Time `msgpack:"fetchedAt"`
}

// Registry is a wrapper around badger.DB keeping track
// of fetched weights files.
type Registry struct {
	bdb *badger.DB
}

func encodeKey(name string) []byte {
	key := make([]byte, 1+len(name))
	key[0] = fetchRecordPrefix
	copy(key[1:], []byte(name))
	return key
}

// Close closes the internal Badger database.
// It is possible to call the method on nil instance
// in which case it is a NOP.
func (r *Registry) Close() error {
	if r != nil && r.bdb != nil {
		return r.bdb.Close()
	}
	return nil
}

func (r *Registry) Store(name string, rec FetchRecord) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to store fetch record: %w", err)
	}
	return r.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(name), data)
	})
}

// Get returns a fetch record for a weights file name. The second
// returned value is false in case there is no such record.
func (r *Registry) Get(name string) (FetchRecord, bool, error) {
	var ans FetchRecord
	err := r.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &ans)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return FetchRecord{}, false, nil
	}
	if err != nil {
		return FetchRecord{}, false, fmt.Errorf("failed to read fetch record: %w", err)
	}
	return ans, true, nil
}

func (r *Registry) Delete(name string) error {
	return r.bdb.Update(func(txn *badger.Txn) error {
		return txn.Delete(encodeKey(name))
	})
}

func OpenRegistry(path string) (*Registry, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithValueLogFileSize(16 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights registry: %w", err)
	}
	return &Registry{bdb: db}, nil
}
