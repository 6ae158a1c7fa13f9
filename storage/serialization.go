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
package storage

import (
	"fmt"

	"github.com/poiesic/capsearch/core"
)

// MarshalCapability serializes a Capability to bytes.
func MarshalCapability(c *core.Capability) []byte {
	buf := make([]byte, core.CapabilityMUS.Size(*c))
	core.CapabilityMUS.Marshal(*c, buf)
	return buf
}

// UnmarshalCapability deserializes a Capability from bytes.
func UnmarshalCapability(data []byte) (*core.Capability, error) {
	c, n, err := core.CapabilityMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %w: read %d of %d bytes", ErrSerializationFailed, ErrTruncatedData, n, len(data))
	}
	return &c, nil
}
