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


// Package ai defines the model services docqa depends on.
//
// Two interfaces cover everything the question answering flow needs:
//
//   - Embedder: maps chunk and question text to vectors
//   - Generator: produces an answer from an assembled prompt
//
// AIProvider bundles both so callers configure endpoints once.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible endpoints through langchaingo (Ollama,
//     Groq, OpenAI, vLLM)
//   - ai/mock: deterministic doubles for tests
//
// Public constructors in ai/openai return interfaces. Mock constructors
// return concrete types so tests can inject behavior and count calls;
// mock.NewMockProvider returns ai.AIProvider and exposes GetMockEmbedder and
// GetMockGenerator for assertions.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithGeneratorToken(os.Getenv("GROQ_API_KEY")))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, chunks)
//	answer, err := provider.Generator().Generate(ctx, prompt)
package ai
