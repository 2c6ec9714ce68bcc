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


// Package retrieval answers questions about a single ingested document.
//
// Orchestrator.Answer moves each question through a fixed sequence of
// states:
//
//	Received -> Embedded -> Retrieved -> ContextAssembled -> Answered
//
// with Failed reachable from any of them. The question is embedded, the
// document's vector index is searched, matching handles are resolved to
// chunk text, and the assembled context is handed to the language model
// through a fixed prompt. A document without an index still gets an answer,
// with no sources.
//
// A Monitor observes every transition; failures carry their stage in a
// StageError.
package retrieval
