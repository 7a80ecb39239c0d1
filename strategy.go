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
	"cmp"
	"encoding/binary"
	"hash/crc32"
	"strings"
	"sync"
	"unsafe"

	"github.com/cockroachdb/buckethash/internal/entropy"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
)

// Strategy is the seeded family of hash functions used by a Table. The seed
// is randomized per process in order to mitigate the algorithmic complexity
// attack described by Crosby and Wallach in UsenixSec2003. A Strategy is
// immutable; each Table binds the hash and compare functions for its key
// kind once, at construction.
type Strategy struct {
	seed        uint32
	source      entropy.Source
	accelerated bool
}

// NewStrategy returns a Strategy using seed, which is forced odd. If
// accelerated is true the CRC-32C variants are used. hash/crc32 falls back
// to a table driven implementation on CPUs without CRC instructions, so an
// accelerated Strategy is always correct, just not always fast.
func NewStrategy(seed uint32, accelerated bool) Strategy {
	return Strategy{
		seed:        seed | 1,
		source:      entropy.SourceDefault,
		accelerated: accelerated,
	}
}

var defaultStrategy = sync.OnceValue(func() Strategy {
	log := zap.L()
	seed := entropy.Acquire(log)
	s := NewStrategy(seed.Value, hardwareCRC32())
	s.source = seed.Source
	log.Debug("selected hash strategy",
		zap.Stringer("seed-source", s.source),
		zap.Bool("accelerated", s.accelerated))
	return s
})

// DefaultStrategy returns the process-wide Strategy. The first call reads
// the seed from the operating system and probes the CPU; the result is
// reused for the lifetime of the process. The first call may block if the
// only available entropy source is a blocking device.
func DefaultStrategy() Strategy {
	return defaultStrategy()
}

// Seed returns the odd constant mixed into every hash.
func (s Strategy) Seed() uint32 { return s.seed }

// Source returns the entropy tier that produced the seed.
func (s Strategy) Source() entropy.Source { return s.source }

// Accelerated reports whether the CRC-32C hash variants are in use.
func (s Strategy) Accelerated() bool { return s.accelerated }

// HashInt hashes an integer key.
func (s Strategy) HashInt(key int) uint32 {
	if s.accelerated {
		return crcInt(s.seed, key)
	}
	return wangInt(s.seed, key)
}

// HashString hashes a string key. Only the bytes preceding the first NUL
// byte contribute to the hash.
func (s Strategy) HashString(key string) uint32 {
	if s.accelerated {
		return crcString(s.seed, key)
	}
	return murmurString(s.seed, key)
}

func (s Strategy) intHash() func(int) uint32 {
	seed := s.seed
	if s.accelerated {
		return func(key int) uint32 { return crcInt(seed, key) }
	}
	return func(key int) uint32 { return wangInt(seed, key) }
}

func (s Strategy) stringHash() func(string) uint32 {
	seed := s.seed
	if s.accelerated {
		return func(key string) uint32 { return crcString(seed, key) }
	}
	return func(key string) uint32 { return murmurString(seed, key) }
}

// hardwareCRC32 reports whether the CPU has a CRC-32C instruction that
// hash/crc32 will use for the Castagnoli polynomial.
func hardwareCRC32() bool {
	return cpu.X86.HasSSE42 || cpu.ARM64.HasCRC32
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// wangInt is Thomas Wang's 32-bit shift-multiply integer hash with the odd
// seed as the multiplier. Only the low 32 bits of key are hashed.
func wangInt(seed uint32, key int) uint32 {
	k := uint32(key)
	k = (k ^ 61) ^ (k >> 16)
	k += k << 3
	k ^= k >> 4
	k *= seed
	k ^= k >> 15
	return k
}

// crcInt folds the low 32 bits of key through CRC-32C starting from seed.
// crc32.Update inverts its input and output; undoing both yields the raw
// value of the crc32 instruction.
func crcInt(seed uint32, key int) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(key))
	return ^crc32.Update(^seed, castagnoli, b[:])
}

func crcString(seed uint32, key string) uint32 {
	return ^crc32.Update(^seed, castagnoli, stringBytes(cstring(key)))
}

func murmurString(seed uint32, key string) uint32 {
	return murmur3.Sum32WithSeed(stringBytes(cstring(key)), seed)
}

func compareInt(a, b int) int {
	return cmp.Compare(a, b)
}

func compareString(a, b string) int {
	return strings.Compare(cstring(a), cstring(b))
}

// cstring returns the prefix of s preceding its first NUL byte.
func cstring(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}

// stringBytes returns the bytes of s without copying. The result must not be
// modified.
func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
