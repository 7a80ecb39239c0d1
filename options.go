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

// option provide an interface to do work on a Table while it is being
// created.
type option[K Key, V any] interface {
	apply(t *Table[K, V])
}

type releaseKeyOption[K Key, V any] struct {
	release func(key K)
}

func (op releaseKeyOption[K, V]) apply(t *Table[K, V]) {
	if op.release != nil {
		t.releaseKey = op.release
	}
}

// WithKeyRelease is an option to specify a function invoked exactly once
// for every key the Table drops: when Add replaces an existing entry, when
// Delete removes one, and for each remaining entry on Close.
func WithKeyRelease[K Key, V any](release func(key K)) option[K, V] {
	return releaseKeyOption[K, V]{release}
}

type releaseValueOption[K Key, V any] struct {
	release func(value V)
}

func (op releaseValueOption[K, V]) apply(t *Table[K, V]) {
	if op.release != nil {
		t.releaseValue = op.release
	}
}

// WithValueRelease is the value counterpart of WithKeyRelease. When both an
// entry's key and value are dropped, the value is released first.
func WithValueRelease[K Key, V any](release func(value V)) option[K, V] {
	return releaseValueOption[K, V]{release}
}

type strategyOption[K Key, V any] struct {
	strategy Strategy
}

func (op strategyOption[K, V]) apply(t *Table[K, V]) {
	t.strategy = op.strategy
}

// WithStrategy is an option to specify the hash Strategy used for a Table
// instead of DefaultStrategy.
func WithStrategy[K Key, V any](s Strategy) option[K, V] {
	return strategyOption[K, V]{s}
}

type hashOption[K Key, V any] struct {
	hash func(key K) uint32
}

func (op hashOption[K, V]) apply(t *Table[K, V]) {
	t.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a
// Table[K,V], overriding the Strategy. Keys that compare equal must hash
// equal.
func WithHash[K Key, V any](hash func(key K) uint32) option[K, V] {
	return hashOption[K, V]{hash}
}

// Allocator specifies an interface for allocating and releasing the entry
// storage of a Table's buckets. The default allocator utilizes Go's builtin
// make() and allows the GC to reclaim memory.
//
// Alloc may return nil to report that memory is exhausted. Growing a bucket
// then fails with ErrNoMemory, while shrinking a bucket after Delete keeps
// the larger storage.
type Allocator[K Key, V any] interface {
	// Alloc should return a slice equivalent to make([]Entry[K,V], n).
	Alloc(n int) []Entry[K, V]

	// Free can optionally release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by Alloc.
	Free(v []Entry[K, V])
}

type defaultAllocator[K Key, V any] struct{}

func (defaultAllocator[K, V]) Alloc(n int) []Entry[K, V] {
	return make([]Entry[K, V], n)
}

func (defaultAllocator[K, V]) Free(v []Entry[K, V]) {
}

type allocatorOption[K Key, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(t *Table[K, V]) {
	t.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a
// Table[K,V].
func WithAllocator[K Key, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
