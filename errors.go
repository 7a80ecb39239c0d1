// Copyright 2024 The Cockroach Authors
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

package buckethash

import "github.com/cockroachdb/errors"

var (
	// ErrNoMemory is returned when the Allocator cannot provide storage for
	// a growing bucket.
	ErrNoMemory = errors.New("buckethash: out of memory")
	// ErrOverflow is returned when growing a bucket would overflow its
	// capacity counter.
	ErrOverflow = errors.New("buckethash: bucket capacity overflow")
	// ErrExists is returned by AddUnique when the key is already present.
	ErrExists = errors.New("buckethash: key already exists")
	// ErrNotFound is returned by Delete when the key is not present.
	ErrNotFound = errors.New("buckethash: key not found")
)
