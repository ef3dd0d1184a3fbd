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


// Package shard packs labeled samples into fixed-capacity tar archives.
//
// Samples are assigned to shards strictly in arrival order. A shard is
// sealed exactly when it reaches capacity; when the stream ends mid-shard
// the final shard is sealed short. Sealed shards are immutable and the
// run's index.json records every shard's sample count, byte size and
// checksum, plus a list of rejected samples.
//
// Each shard follows the WebDataset member layout: for a sample with key
// K the archive holds K.<ext> (payload bytes), K.txt (caption) and
// K.json (feature metadata and the aggregated label).
//
// A sample that cannot be written (empty payload, missing label, tar
// write failure) is skipped and recorded, never aborting the run. An
// archive-level failure abandons only the shard being built; its samples
// move to the rejected list and writing continues with the next shard.
package shard
