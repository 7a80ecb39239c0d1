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

//go:build unix

package entropy

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// readDevice fills p with a single read of the device at path. A short read
// is an error.
func readDevice(path string, nonblock bool, p []byte) error {
	flags := unix.O_RDONLY | unix.O_CLOEXEC
	if nonblock {
		flags |= unix.O_NONBLOCK
	}
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer unix.Close(fd)

	n, err := unix.Read(fd, p)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if n != len(p) {
		return errors.Newf("short read from %s: %d of %d bytes", path, n, len(p))
	}
	return nil
}
