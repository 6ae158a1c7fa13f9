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
// Package ai provides abstractions for the AI services capsearch consumes.
//
// This package defines interfaces for the two external collaborators of the
// search core: an embedding gateway that turns text into fixed-dimension
// vectors, and a key element extractor that derives short tags from free text.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - KeyElementExtractor: Derives tag strings from text, best effort
//   - AIProvider: Aggregates AI services for convenient initialization
//
// GuardedEmbedder wraps any Embedder with the gateway contract: empty input
// is rejected, vectors of the wrong dimension are never returned, and calls
// pass through a circuit breaker and a rate limiter. Every failure it
// reports wraps core.ErrEmbedding.
//
// KeywordExtractor is a local, dependency-free KeyElementExtractor used when
// no classifier model is configured.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// interface types. Test constructors (mock.NewMockEmbedder,
// mock.NewMockKeyElementExtractor) return concrete types so tests can inject
// behavior and inspect recorded calls.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "current weather for a city")
//	tags, err := provider.KeyElementExtractor().ExtractKeyElements(ctx, "check the weather right now")
package ai
