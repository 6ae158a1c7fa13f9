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


// Package search provides hybrid multi-vector capability search.
//
// Engine.Search answers a free-text query in one pass:
//   - key elements are extracted from the query and looked up as tags
//   - the query is embedded once per weighted dimension
//   - each dimension is ranked over the active candidate pool
//   - dimension scores are combined as a weighted sum and the tag boost is added
//
// Tag lookup and vector ranking run concurrently and are joined before scores
// are combined. The weighted sum is not divided by the weight total, so the
// magnitude of the weights sets the scale that Query.Threshold is compared
// against. Only all-zero weights are replaced, by equal thirds.
//
// Capabilities found only through tag overlap are still returned, scored by
// the tag boost alone, so exact keyword matches are never lost.
package search
