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

package reembed

import (
	"context"

	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/storage"
)

const (
	// DefaultBatchSize is the default number of capabilities handed to each batch
	DefaultBatchSize = 100
)

// CapabilityIterator iterates over all stored capabilities in batches.
type CapabilityIterator struct {
	repo      storage.CapabilityRepository
	batchSize int
}

// NewCapabilityIterator creates a new capability iterator.
// batchSize: number of capabilities per batch (defaults when <= 0)
func NewCapabilityIterator(repo storage.CapabilityRepository, batchSize int) *CapabilityIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &CapabilityIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach lists every capability, active or not, and calls fn for each batch
// in id order. Iteration stops on the first error from fn. Context
// cancellation is checked between batches.
func (it *CapabilityIterator) ForEach(ctx context.Context, fn func([]*core.Capability) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	capabilities, err := it.repo.ListCapabilities(ctx)
	if err != nil {
		return err
	}
	return it.ForEachIn(ctx, capabilities, fn)
}

// ForEachIn calls fn for each batch of an already loaded listing, with the
// same stopping rules as ForEach.
func (it *CapabilityIterator) ForEachIn(ctx context.Context, capabilities []*core.Capability, fn func([]*core.Capability) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := 0; i < len(capabilities); i += it.batchSize {
		end := min(i+it.batchSize, len(capabilities))
		if err := fn(capabilities[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
