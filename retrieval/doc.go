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

// Package retrieval ingests rendered text into named collections and answers
// nearest-neighbor queries over them.
//
// An Index hands out Collection handles. Each collection is created in storage
// on its first write and has a single writer at a time; queries run without
// locking and may or may not observe an ingestion in flight.
//
// Scores are cosine similarities clamped to [0, 1] and rounded to three
// decimals. Retrieve degrades every failure to an empty result; Search returns
// the failure as a *core.QueryError.
package retrieval
