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

import (
	"fmt"
	"slices"
	"strings"
)

// ValidateCapability validates a Capability according to domain rules.
//
// Validation rules:
//   - ID and Name must not be empty
//   - Kind and Status must be valid
//   - Payload, when present, must match Kind
//   - Populated vectors must share one dimensionality
//
// NOT validated:
//   - Vectors may be partially or entirely absent (partial registration)
//   - KeyElements may be empty
func ValidateCapability(c *Capability) error {
	if c == nil {
		return fmt.Errorf("%w: capability is nil", ErrInvalidCapability)
	}

	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCapability, ErrEmptyCapabilityID)
	}

	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCapability, ErrEmptyName)
	}

	if err := ValidateKind(c.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCapability, err)
	}

	if c.Status != StatusActive && c.Status != StatusDisabled {
		return fmt.Errorf("%w: %w: value %d", ErrInvalidCapability, ErrInvalidStatus, c.Status)
	}

	if c.Payload != nil && c.Payload.Kind() != c.Kind {
		return fmt.Errorf("%w: %w: %s payload on %s", ErrInvalidCapability, ErrPayloadKindMismatch, c.Payload.Kind(), c.Kind)
	}

	if err := ValidateVectors(c.Vectors); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCapability, err)
	}

	return nil
}

// ValidateKind validates that a Kind has a valid value.
func ValidateKind(k Kind) error {
	if _, ok := kindNames[k]; !ok {
		return fmt.Errorf("%w: value %d", ErrUnknownKind, k)
	}
	return nil
}

// ValidateVectors checks that every populated vector has the same length.
func ValidateVectors(v VectorTriple) error {
	dim := 0
	for _, d := range Dimensions {
		vec := v.Get(d)
		if len(vec) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(vec)
			continue
		}
		if len(vec) != dim {
			return fmt.Errorf("%w: %s has %d, expected %d", ErrVectorDimensions, d, len(vec), dim)
		}
	}
	return nil
}

// NormalizeKeyElements trims, lowercases, deduplicates and sorts tags.
// Empty tags are dropped.
func NormalizeKeyElements(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
