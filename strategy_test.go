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
	"hash/crc32"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStrategySeedIsOdd(t *testing.T) {
	for _, seed := range []uint32{0, 1, 2, 0x27d4eb2c, ^uint32(0), rand.Uint32()} {
		require.EqualValues(t, 1, NewStrategy(seed, false).Seed()&1, "%08x", seed)
		require.EqualValues(t, seed|1, NewStrategy(seed, true).Seed())
	}
	require.EqualValues(t, 1, DefaultStrategy().Seed()&1)
}

func TestDefaultStrategyMemoized(t *testing.T) {
	a := DefaultStrategy()
	b := DefaultStrategy()
	require.Equal(t, a, b)
	require.Equal(t, hardwareCRC32(), a.Accelerated())
	require.NotEqual(t, "unknown", a.Source().String())
}

func TestCRCVariantsMatchCRC32C(t *testing.T) {
	// The standard CRC-32C check value is computed with an initial value
	// of all ones and a final inversion; the raw fold omits the inversion.
	require.Equal(t, ^uint32(0xe3069283), crcString(^uint32(0), "123456789"))
	require.Equal(t, crc32.Checksum([]byte("123456789"), castagnoli),
		^crcString(^uint32(0), "123456789"))

	// Integer keys fold their low 32 bits in little-endian order.
	for _, seed := range []uint32{1, 0x27d4eb2d, rand.Uint32() | 1} {
		require.Equal(t, crcString(seed, "abcd"), crcInt(seed, 0x64636261))
	}
}

func TestMurmur(t *testing.T) {
	require.EqualValues(t, 0, murmurString(0, ""))
	require.EqualValues(t, 0x248bfa47, murmurString(0, "hello"))
	require.NotEqual(t, murmurString(1, "hello"), murmurString(3, "hello"))
}

func TestWang(t *testing.T) {
	// Only the low 32 bits contribute.
	if strconv.IntSize == 64 {
		k, shift := 0x12345678, 32
		require.Equal(t, wangInt(0x27d4eb2d, k), wangInt(0x27d4eb2d, k|0x7f<<shift))
	}
	require.NotEqual(t, wangInt(0x27d4eb2d, 1), wangInt(0x1b873593, 1))
}

func TestStringHashStopsAtNUL(t *testing.T) {
	for _, accelerated := range []bool{false, true} {
		s := NewStrategy(rand.Uint32(), accelerated)
		t.Run(fmt.Sprint(accelerated), func(t *testing.T) {
			require.Equal(t, s.HashString("abc"), s.HashString("abc\x00def"))
			require.Equal(t, s.HashString(""), s.HashString("\x00"))
			require.Equal(t, 0, compareString("abc", "abc\x00def"))
			require.NotEqual(t, 0, compareString("abc", "abd"))
		})
	}
}

func TestStrategyDispatch(t *testing.T) {
	seed := rand.Uint32() | 1
	portable := NewStrategy(seed, false)
	accelerated := NewStrategy(seed, true)
	for i := 0; i < 100; i++ {
		k := rand.Int()
		ks := strconv.Itoa(k)
		require.Equal(t, wangInt(seed, k), portable.HashInt(k))
		require.Equal(t, portable.HashInt(k), portable.intHash()(k))
		require.Equal(t, murmurString(seed, ks), portable.HashString(ks))
		require.Equal(t, portable.HashString(ks), portable.stringHash()(ks))

		require.Equal(t, crcInt(seed, k), accelerated.HashInt(k))
		require.Equal(t, accelerated.HashInt(k), accelerated.intHash()(k))
		require.Equal(t, crcString(seed, ks), accelerated.HashString(ks))
		require.Equal(t, accelerated.HashString(ks), accelerated.stringHash()(ks))
	}
}

func TestHashDistribution(t *testing.T) {
	for _, accelerated := range []bool{false, true} {
		s := NewStrategy(rand.Uint32(), accelerated)
		t.Run(fmt.Sprint(accelerated), func(t *testing.T) {
			ints := make(map[uint32]struct{})
			strs := make(map[uint32]struct{})
			for i := 0; i < 10000; i++ {
				ints[s.HashInt(i)&bucketMask] = struct{}{}
				strs[s.HashString(strconv.Itoa(i))&bucketMask] = struct{}{}
			}
			require.Greater(t, len(ints), nBuckets/4)
			require.Greater(t, len(strs), nBuckets/4)
		})
	}
}

func TestCompareInt(t *testing.T) {
	require.Equal(t, 0, compareInt(5, 5))
	require.Equal(t, -1, compareInt(-1, 0))
	require.Equal(t, 1, compareInt(0, -1))
}
