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


// Package storage provides the storage abstraction layer for capsearch.
//
// This package defines the CapabilityRepository interface that decouples the
// capability store from search and registration. Two backends implement it:
//
//   - storage/badger: embedded key-value store; similarity is computed in
//     process by the similarity package (manual path)
//   - storage/postgres: PostgreSQL with pgvector; also implements
//     similarity.NativeScorer so cosine math runs in the database
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.CapabilityRepository interface to
// enforce abstraction:
//
//	repo, err := badger.NewRepository("/path/to/db")  // returns storage.CapabilityRepository
//
// Internal package constructors may return concrete types since they're only
// used within the implementation package.
//
// # Not Found Versus Failure
//
// Point lookups return ErrNotFound when no record matches. That outcome is a
// valid, empty answer. Backend failures wrap core.ErrStore instead, so callers
// can tell the two apart with errors.Is.
//
// # Usage
//
//	repo, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe. Same-id upserts are
// serialized (KeyedMutex for badger, advisory locks for postgres).
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
