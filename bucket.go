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

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// bucket holds the entries whose hash maps to one top-level slot.
type bucket[K Key, V any] struct {
	// entries is total in length. Only entries[:used] are live; the
	// remainder is zeroed so that the GC does not retain dropped keys and
	// values.
	entries []Entry[K, V]
	// The number of live entries.
	used uint32
	// The allocated number of entries: 0 or a multiple of steps.
	total uint32
}

// grownTotal returns the capacity following total, or ErrOverflow if it
// does not fit the capacity counter.
func grownTotal(total uint32) (uint32, error) {
	if total > math.MaxUint32-steps {
		return 0, errors.Wrapf(ErrOverflow, "growing bucket of %d entries", total)
	}
	return total + steps, nil
}

// shrunkTotal returns the capacity a bucket holding used entries should be
// shrunk to. It always leaves room for one more entry so that the next
// insert does not immediately grow the bucket again.
func shrunkTotal(used uint32) uint32 {
	return (used/steps + 1) * steps
}

// insert returns the entry for key, appending a blank entry if no entry
// compares equal. The bucket is grown beforehand if the insertion would fill
// it; a failed growth leaves the bucket unchanged.
func (b *bucket[K, V]) insert(t *Table[K, V], key K, h uint32) (*Entry[K, V], bool, error) {
	if b.used+1 >= b.total {
		newTotal, err := grownTotal(b.total)
		if err != nil {
			return nil, false, err
		}
		if !b.resize(t, newTotal) {
			return nil, false, errors.Wrapf(ErrNoMemory, "growing bucket %d to %d entries",
				h&bucketMask, newTotal)
		}
	}

	if i := b.find(t, key, h); i >= 0 {
		return &b.entries[i], false, nil
	}

	e := &b.entries[b.used]
	*e = Entry[K, V]{hash: h}
	b.used++
	t.count++
	return e, true, nil
}

// find returns the index of the entry for key, or -1.
func (b *bucket[K, V]) find(t *Table[K, V], key K, h uint32) int {
	for i, n := 0, int(b.used); i < n; i++ {
		e := &b.entries[i]
		if e.hash != h {
			continue
		}
		if t.compare(key, e.key) == 0 {
			return i
		}
	}
	return -1
}

// remove deletes the entry for key, releasing its value and key, and then
// shrinks the bucket if enough storage has been freed. Shrinking is best
// effort: if the allocator cannot provide the smaller storage the bucket
// keeps its current storage.
func (b *bucket[K, V]) remove(t *Table[K, V], key K, h uint32) error {
	i := b.find(t, key, h)
	if i < 0 {
		return ErrNotFound
	}

	e := &b.entries[i]
	t.releaseValue(e.value)
	t.releaseKey(e.key)

	copy(b.entries[i:b.used], b.entries[i+1:b.used])
	b.entries[b.used-1] = Entry[K, V]{}
	b.used--
	t.count--

	if newTotal := shrunkTotal(b.used); newTotal < b.total {
		_ = b.resize(t, newTotal)
	}
	return nil
}

// resize moves the live entries to new storage of newTotal entries, which
// must be at least used. It returns false, leaving the bucket unchanged, if
// the allocator cannot provide the storage.
func (b *bucket[K, V]) resize(t *Table[K, V], newTotal uint32) bool {
	if uint64(newTotal) > math.MaxInt {
		return false
	}
	entries := t.allocator.Alloc(int(newTotal))
	if len(entries) < int(newTotal) {
		return false
	}
	entries = entries[:newTotal]
	copy(entries, b.entries[:b.used])
	if b.entries != nil {
		t.allocator.Free(b.entries)
	}
	b.entries = entries
	b.total = newTotal
	return true
}

// release drops every live entry, value before key, and frees the bucket
// storage.
func (b *bucket[K, V]) release(t *Table[K, V]) {
	for i := uint32(0); i < b.used; i++ {
		e := &b.entries[i]
		t.releaseValue(e.value)
		t.releaseKey(e.key)
	}
	if b.entries != nil {
		t.allocator.Free(b.entries)
	}
	*b = bucket[K, V]{}
}

func (b *bucket[K, V]) checkInvariants(t *Table[K, V], index uint32) {
	if invariants {
		if b.total%steps != 0 {
			panic(fmt.Sprintf("invariant failed: bucket %d: total %d is not a multiple of %d",
				index, b.total, steps))
		}
		if b.used > b.total {
			panic(fmt.Sprintf("invariant failed: bucket %d: used %d exceeds total %d",
				index, b.used, b.total))
		}
		if int(b.total) != len(b.entries) {
			panic(fmt.Sprintf("invariant failed: bucket %d: total %d but %d entries allocated",
				index, b.total, len(b.entries)))
		}
		for i := uint32(0); i < b.used; i++ {
			e := &b.entries[i]
			if e.hash&bucketMask != index {
				panic(fmt.Sprintf("invariant failed: bucket %d: entry %d has hash %08x\n%s",
					index, i, e.hash, t.debugString()))
			}
			for j := i + 1; j < b.used; j++ {
				if t.compare(e.key, b.entries[j].key) == 0 {
					panic(fmt.Sprintf("invariant failed: bucket %d: entries %d and %d have equal keys %v\n%s",
						index, i, j, e.key, t.debugString()))
				}
			}
		}
	}
}
