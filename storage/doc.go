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

// Package storage provides the storage abstraction layer for the vector index.
//
// Repository interfaces decouple the index from its backend. The BadgerDB
// implementation lives in storage/badger.
//
// # Layout
//
//   - ChunkRepository: embedded chunks partitioned into named collections,
//     with metadata-filtered similarity search
//   - StateRepository: which filings have been ingested into which collection
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	chunks := badger.NewChunkRepository(backend)
//	defer chunks.Close()
//
// Use in tests with in-memory storage:
//
//	chunks, states, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// Implementations are safe for concurrent use. Writers to the same
// collection are expected to serialize among themselves; readers may run
// concurrently with a writer and observe either the old or new state.
package storage
