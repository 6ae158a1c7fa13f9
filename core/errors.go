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


package core

import "errors"

// Terminal errors surfaced by vectorization, search and registration.
var (
	// ErrInvalidQuery indicates empty or malformed query text. Not retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmbedding indicates an embedding gateway failure (timeout, provider
	// error, empty input rejection or a wrong-dimension vector).
	ErrEmbedding = errors.New("embedding error")

	// ErrDimensionMismatch indicates a zero-dimension query vector.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrStore indicates the storage backend is unavailable or a write conflicted.
	ErrStore = errors.New("store error")
)

// Domain validation errors
var (
	// ErrInvalidCapability indicates a Capability failed validation.
	ErrInvalidCapability = errors.New("invalid capability")

	// ErrEmptyCapabilityID indicates the ID field is empty.
	ErrEmptyCapabilityID = errors.New("capability id cannot be empty")

	// ErrEmptyName indicates the Name field is empty.
	ErrEmptyName = errors.New("capability name cannot be empty")

	// ErrUnknownKind indicates an unrecognized capability kind.
	ErrUnknownKind = errors.New("unknown capability kind")

	// ErrInvalidStatus indicates an unrecognized status value.
	ErrInvalidStatus = errors.New("invalid capability status")

	// ErrPayloadKindMismatch indicates the payload does not belong to the capability's kind.
	ErrPayloadKindMismatch = errors.New("payload kind does not match capability kind")

	// ErrInvalidWeights indicates a negative or non-finite search weight.
	ErrInvalidWeights = errors.New("search weights must be finite and non-negative")

	// ErrVectorDimensions indicates the populated vectors of a triple differ in length.
	ErrVectorDimensions = errors.New("capability vectors must share one dimensionality")
)
