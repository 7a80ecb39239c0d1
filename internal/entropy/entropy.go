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

// Package entropy obtains a 32-bit random value from the operating system
// for keying hash functions. Acquisition never fails: each source is tried
// in turn and a fixed constant is used if all of them are unavailable.
package entropy

import (
	"encoding/binary"

	"go.uber.org/zap"
)

// DefaultSeed is used when no operating system entropy source can be read.
// It is odd.
const DefaultSeed uint32 = 0x27d4eb2d

// Source identifies which tier produced a Seed.
type Source uint8

const (
	// SourceDefault means every tier failed and DefaultSeed was used.
	SourceDefault Source = iota
	// SourceGetrandom is the non-blocking getrandom(2) system call.
	SourceGetrandom
	// SourceURandom is a non-blocking read of the best-effort device.
	SourceURandom
	// SourceRandom is a blocking read of the blocking device.
	SourceRandom
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceGetrandom:
		return "getrandom"
	case SourceURandom:
		return "urandom"
	case SourceRandom:
		return "random"
	default:
		return "unknown"
	}
}

// Seed is a value read from an entropy source along with the source that
// produced it.
type Seed struct {
	Value  uint32
	Source Source
}

// Reader describes the tiers consulted by Acquire. A nil Getrandom or an
// empty device path disables that tier.
type Reader struct {
	// Getrandom fills p without blocking, returning the number of bytes
	// written.
	Getrandom func(p []byte) (int, error)
	// URandom is read with O_NONBLOCK.
	URandom string
	// Random is read with a blocking read.
	Random string
}

// DefaultReader returns the tiers used on the current platform.
func DefaultReader() Reader {
	return Reader{
		Getrandom: getrandom,
		URandom:   "/dev/urandom",
		Random:    "/dev/random",
	}
}

// Acquire reads a seed using DefaultReader.
func Acquire(log *zap.Logger) Seed {
	return DefaultReader().Acquire(log)
}

// Acquire tries each configured tier in order and returns the first value
// that could be read in full. Failures are logged at debug level.
func (r Reader) Acquire(log *zap.Logger) Seed {
	if log == nil {
		log = zap.NewNop()
	}
	var buf [4]byte

	if r.Getrandom != nil {
		n, err := r.Getrandom(buf[:])
		if err == nil && n == len(buf) {
			return Seed{Value: binary.LittleEndian.Uint32(buf[:]), Source: SourceGetrandom}
		}
		log.Debug("entropy tier unavailable",
			zap.Stringer("source", SourceGetrandom), zap.Int("read", n), zap.Error(err))
	}

	devices := [...]struct {
		path     string
		nonblock bool
		source   Source
	}{
		{r.URandom, true, SourceURandom},
		{r.Random, false, SourceRandom},
	}
	for _, d := range devices {
		if d.path == "" {
			continue
		}
		if err := readDevice(d.path, d.nonblock, buf[:]); err != nil {
			log.Debug("entropy tier unavailable",
				zap.Stringer("source", d.source), zap.String("path", d.path), zap.Error(err))
			continue
		}
		return Seed{Value: binary.LittleEndian.Uint32(buf[:]), Source: d.source}
	}

	log.Debug("using default seed", zap.Uint32("seed", DefaultSeed))
	return Seed{Value: DefaultSeed, Source: SourceDefault}
}
