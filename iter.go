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

// Iterator is a cursor over the entries of a Table in bucket order, and in
// insertion order within a bucket. It is invalid to Add to or Delete from
// the table while an iteration is in progress.
//
//	it := t.Iter()
//	for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
type Iterator[K Key, V any] struct {
	t      *Table[K, V]
	bucket int
	// entry is the index of the current entry within the bucket, -1 before
	// the first call to Next.
	entry int
}

// Iter returns an Iterator positioned before the first entry of the table.
func (t *Table[K, V]) Iter() Iterator[K, V] {
	return Iterator[K, V]{t: t, bucket: 0, entry: -1}
}

// Reset repositions the iterator before the first entry.
func (it *Iterator[K, V]) Reset() {
	it.bucket = 0
	it.entry = -1
}

// Next advances to the next entry and returns its key and value. Once the
// entries are exhausted Next returns ok=false, and keeps doing so until
// Reset is called.
func (it *Iterator[K, V]) Next() (key K, value V, ok bool) {
	if it.bucket >= nBuckets {
		return key, value, false
	}

	b := &it.t.buckets[it.bucket]
	it.entry++

	if it.entry >= int(b.used) {
		it.entry = 0

		for it.bucket++; it.bucket < nBuckets; it.bucket++ {
			b = &it.t.buckets[it.bucket]
			if b.used > 0 {
				break
			}
		}

		if it.bucket >= nBuckets {
			return key, value, false
		}
	}

	e := &b.entries[it.entry]
	return e.key, e.value, true
}
