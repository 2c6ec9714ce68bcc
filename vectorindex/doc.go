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


// Package vectorindex provides a persistent, exact nearest-neighbour index
// over fixed-dimension float32 vectors.
//
// Every vector added to an Index receives an integer handle equal to its
// insertion position: the first vector is handle 0, the next handle 1, and
// so on. Handles are never reused, so a caller that adds the chunks of a
// document in ordinal order can map search results straight back to chunks.
//
// Search is brute force over squared Euclidean distance. Results are ranked
// by ascending distance and equal distances keep insertion order.
//
// # Persistence
//
// An index lives in a single file. Writes go to a temporary file in the same
// directory which is synced and renamed over the target, so readers see
// either the previous or the new contents and never a partial file. The file
// ends with a BLAKE2b checksum; a file that fails verification is reported
// as core.ErrIndexIO.
//
// # Writers
//
// Index values are safe for concurrent use, but two Index values opened on
// the same path do not coordinate. Code that modifies the file at a path
// should hold the path lock from a Locker for the whole read-modify-write
// cycle:
//
//	unlock, err := vectorindex.SharedLocker().Lock(ctx, path)
//	if err != nil {
//	    return err
//	}
//	defer unlock()
//
//	idx, err := vectorindex.OpenOrCreate(path, 384)
//	...
//	handles, err := idx.Add(vectors)
//
// Locker serialises writers in the same process and, through an advisory
// lock file next to the index, across processes.
package vectorindex
