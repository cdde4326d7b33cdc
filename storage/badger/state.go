// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/filingrag/storage"
)

// StateRepository implements storage.StateRepository for BadgerDB.
type StateRepository struct {
	backend *Backend
}

var _ storage.StateRepository = (*StateRepository)(nil)

// NewStateRepository creates a new StateRepository.
func NewStateRepository(backend *Backend) *StateRepository {
	return &StateRepository{
		backend: backend,
	}
}

// MarkIngested persists the ingestion time of a symbol in a collection.
func (r *StateRepository) MarkIngested(ctx context.Context, collection, symbol string, at time.Time) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeDocStateKey(collection, symbol), storage.MarshalTime(at.UTC())); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// IngestedAt retrieves the ingestion time of a symbol in a collection.
// Returns false if no mark exists.
func (r *StateRepository) IngestedAt(ctx context.Context, collection, symbol string) (time.Time, bool, error) {
	var (
		at    time.Time
		found bool
	)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocStateKey(collection, symbol))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			at, unmarshalErr = storage.UnmarshalTime(val)
			found = unmarshalErr == nil
			return unmarshalErr
		})
	}, false)

	return at, found, err
}
