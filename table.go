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

// Package buckethash is a small chained hash table for integer and string
// keys, intended to be embedded in low-level system tools.
//
// # Layout
//
// A Table has a fixed array of 512 buckets. Each bucket owns a growable
// array of entries, and each entry holds a key, a value and the cached hash
// of the key. The bucket of a key is hash(key) & 511. Bucket storage grows
// and shrinks in steps of 64 entries:
//
//	 buckets (512)
//	+-----+
//	|   0 | --> [e0 e1 e2 .. .. .. ..]   used=3  total=64
//	+-----+
//	|   1 | --> nil                      used=0  total=0
//	+-----+
//	|   2 | --> [e0 e1 .. .. .. .. ..]   used=2  total=64
//	+-----+
//	| ... |
//	+-----+
//
// Lookups scan the live entries of a single bucket and compare the cached
// hash before calling the key comparison function. Deletion removes the
// entry and shifts the following entries down so that the live entries of a
// bucket stay contiguous and in insertion order, which makes iteration order
// deterministic for a given sequence of operations.
//
// The number of top-level buckets never changes. With very large key counts
// the per-bucket scans get longer rather than triggering a rehash; the table
// favors small and medium sizes. The bucketstat command reports the bucket
// distribution of a key set.
//
// # Hashing
//
// Keys are hashed with a Strategy. DefaultStrategy is computed once per
// process: it reads a random seed from the operating system and probes the
// CPU for a CRC-32C instruction. Without one, integers are hashed with
// Thomas Wang's shift-multiply hash and strings with MurmurHash3, both
// keyed by the seed. With one, both kinds are hashed with CRC-32C seeded the
// same way. String keys follow C string semantics: only the bytes before the
// first NUL byte are hashed and compared.
//
// # Ownership
//
// The table stores keys and values as given and never copies what they
// refer to. A Table may be configured with release functions for keys and
// values; they are called exactly once for every key and value the table
// drops, when Add overwrites an entry, when Delete removes one and when
// Close discards the remaining entries. The value is always released before
// its key. Find and iteration never release anything.
package buckethash

import (
	"fmt"
	"strings"
)

const (
	// nBuckets is the number of top-level buckets. It must be a power of 2.
	nBuckets   = 512
	bucketMask = nBuckets - 1

	// steps is the granularity, in entries, of bucket growth and shrinkage.
	steps = 64
)

// Key is the set of key kinds a Table supports.
type Key interface {
	int | string
}

// Entry holds a key, its value and the cached hash of the key.
type Entry[K Key, V any] struct {
	key   K
	value V
	hash  uint32
}

// Table is a hash table from keys to values with Add, AddUnique, Find,
// Delete and iteration operations. Integer tables are created with NewInt
// and string tables with NewString.
//
// A Table is NOT goroutine-safe. Callers must serialize all access.
type Table[K Key, V any] struct {
	// The hash function bound at construction from the Strategy, or the
	// WithHash override.
	hash    func(key K) uint32
	compare func(a, b K) int
	// strategy is the zero value until resolved. A resolved Strategy always
	// has an odd seed.
	strategy     Strategy
	releaseKey   func(key K)
	releaseValue func(value V)
	allocator    Allocator[K, V]
	// The number of live entries across all buckets.
	count   int
	buckets [nBuckets]bucket[K, V]
}

// NewInt constructs a Table keyed by integers. Keys are ordered by signed
// comparison and hashed by their low 32 bits.
func NewInt[V any](options ...option[int, V]) *Table[int, V] {
	return newTable(Strategy.intHash, compareInt, options)
}

// NewString constructs a Table keyed by strings.
func NewString[V any](options ...option[string, V]) *Table[string, V] {
	return newTable(Strategy.stringHash, compareString, options)
}

func newTable[K Key, V any](
	bind func(Strategy) func(K) uint32, compare func(a, b K) int, options []option[K, V],
) *Table[K, V] {
	t := &Table[K, V]{
		compare:      compare,
		releaseKey:   func(K) {},
		releaseValue: func(V) {},
		allocator:    defaultAllocator[K, V]{},
	}

	for _, op := range options {
		op.apply(t)
	}

	if t.hash == nil {
		if t.strategy.seed == 0 {
			t.strategy = DefaultStrategy()
		}
		t.hash = bind(t.strategy)
	}

	t.checkInvariants()
	return t
}

// Close releases every remaining entry, value before key, and returns the
// bucket storage to the configured allocator. It is invalid to use a Table
// after it has been closed, though Close itself is idempotent.
func (t *Table[K, V]) Close() {
	for i := range t.buckets {
		t.buckets[i].release(t)
	}
	t.count = 0
}

// Add inserts an entry into the table. If an entry with an equal key already
// exists, its value and key are released and replaced by value and key.
//
// Add fails with ErrNoMemory or ErrOverflow if the bucket of key has to grow
// and cannot. The table is left unchanged in that case.
func (t *Table[K, V]) Add(key K, value V) error {
	e, fresh, err := t.insert(key)
	if err != nil {
		return err
	}
	if !fresh {
		t.releaseValue(e.value)
		t.releaseKey(e.key)
	}
	e.key = key
	e.value = value
	t.checkInvariants()
	return nil
}

// AddUnique is like Add but fails with ErrExists if an entry with an equal
// key already exists, leaving that entry in place. AddUnique never calls the
// release functions.
func (t *Table[K, V]) AddUnique(key K, value V) error {
	e, fresh, err := t.insert(key)
	if err != nil {
		return err
	}
	if !fresh {
		return ErrExists
	}
	e.key = key
	e.value = value
	t.checkInvariants()
	return nil
}

// Find retrieves the value for the specified key, returning ok=false if the
// key is not present.
func (t *Table[K, V]) Find(key K) (value V, ok bool) {
	h := t.hash(key)
	b := t.bucket(h)
	if i := b.find(t, key, h); i >= 0 {
		return b.entries[i].value, true
	}
	return value, false
}

// Delete removes the entry for the specified key, releasing its value and
// key. It returns ErrNotFound, leaving the table unchanged, if the key is
// not present.
func (t *Table[K, V]) Delete(key K) error {
	h := t.hash(key)
	if err := t.bucket(h).remove(t, key, h); err != nil {
		return err
	}
	t.checkInvariants()
	return nil
}

// Count returns the number of entries in the table.
func (t *Table[K, V]) Count() int {
	return t.count
}

// Strategy returns the hash Strategy bound to the table. It is the zero
// Strategy if the table was created with WithHash.
func (t *Table[K, V]) Strategy() Strategy {
	return t.strategy
}

// All calls yield sequentially for each key and value present in the table,
// in the same order as an Iterator. If yield returns false, All stops the
// iteration. The table must not be mutated during iteration.
func (t *Table[K, V]) All(yield func(key K, value V) bool) {
	it := t.Iter()
	for {
		k, v, ok := it.Next()
		if !ok || !yield(k, v) {
			return
		}
	}
}

// Stats describes how the entries of a Table are spread across its buckets.
type Stats struct {
	// Entries is the number of live entries.
	Entries int
	// Buckets is the number of top-level buckets.
	Buckets int
	// BucketsUsed is the number of buckets holding at least one entry.
	BucketsUsed int
	// LongestBucket is the number of entries in the fullest bucket, which
	// bounds the length of a lookup scan.
	LongestBucket int
	// Capacity is the total number of entries allocated across all buckets.
	Capacity int
}

// Stats returns the current bucket distribution of the table.
func (t *Table[K, V]) Stats() Stats {
	s := Stats{Entries: t.count, Buckets: nBuckets}
	for i := range t.buckets {
		b := &t.buckets[i]
		if b.used > 0 {
			s.BucketsUsed++
		}
		s.LongestBucket = max(s.LongestBucket, int(b.used))
		s.Capacity += int(b.total)
	}
	return s
}

// insert locates the entry for key, creating a blank one if the key is not
// present. fresh reports whether the entry was created.
func (t *Table[K, V]) insert(key K) (e *Entry[K, V], fresh bool, err error) {
	h := t.hash(key)
	return t.bucket(h).insert(t, key, h)
}

// bucket returns the bucket corresponding to hash value h.
func (t *Table[K, V]) bucket(h uint32) *bucket[K, V] {
	return &t.buckets[h&bucketMask]
}

func (t *Table[K, V]) checkInvariants() {
	if invariants {
		var count int
		for i := range t.buckets {
			b := &t.buckets[i]
			b.checkInvariants(t, uint32(i))
			count += int(b.used)
		}
		if count != t.count {
			panic(fmt.Sprintf("invariant failed: found %d entries, but count is %d\n%s",
				count, t.count, t.debugString()))
		}
	}
}

func (t *Table[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "count=%d\n", t.count)
	for i := range t.buckets {
		b := &t.buckets[i]
		if b.total == 0 {
			continue
		}
		fmt.Fprintf(&buf, "  bucket %3d: used=%d total=%d\n", i, b.used, b.total)
		for j := uint32(0); j < b.used; j++ {
			e := &b.entries[j]
			fmt.Fprintf(&buf, "    %4d: %v [hash=%08x]\n", j, e.key, e.hash)
		}
	}
	return buf.String()
}
