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

// Command bucketstat loads a key set into a buckethash table and reports how
// the keys spread across the table's buckets. Keys are read one per line
// from a file or from stdin. Keys longer than 16 MiB are rejected.
//
//	bucketstat -kind int -keys ids.txt
//	bucketstat -config bucketstat.toml < names.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/buckethash"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bucketstat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path of a TOML configuration file")
	kind := fs.String("kind", "", `key kind, "int" or "string"`)
	keysPath := fs.String("keys", "", "file of keys, one per line (default stdin)")
	deleteEvery := fs.Int("delete-every", 0, "delete every n-th distinct key after loading")
	unique := fs.Bool("unique", false, "keep the first occurrence of duplicate keys")
	logLevel := fs.String("log-level", "", "log level")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "bucketstat: %v\n", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "kind":
			cfg.Kind = *kind
		case "delete-every":
			cfg.DeleteEvery = *deleteEvery
		case "unique":
			cfg.Unique = *unique
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(stderr, "bucketstat: %v\n", err)
		return 1
	}

	log, closeLog, err := newLogger(cfg.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "bucketstat: %v\n", err)
		return 1
	}
	defer closeLog()
	defer zap.ReplaceGlobals(log)()

	in := stdin
	if *keysPath != "" {
		f, err := os.Open(*keysPath)
		if err != nil {
			log.Error("opening keys", zap.String("path", *keysPath), zap.Error(err))
			return 1
		}
		defer f.Close()
		in = f
	}

	r, err := load(cfg, in, log)
	if err != nil {
		log.Error("loading keys", zap.Error(err))
		return 1
	}
	r.write(stdout)
	return 0
}

// maxKeyLen is the longest key line load accepts.
const maxKeyLen = 16 << 20

// report is the outcome of loading a key set.
type report struct {
	kind       string
	strategy   buckethash.Strategy
	lines      int
	duplicates int
	released   int
	deleted    int
	stats      buckethash.Stats
}

func (r report) write(w io.Writer) {
	hash := "portable"
	if r.strategy.Accelerated() {
		hash = "crc32c"
	}
	fmt.Fprintf(w, "kind:           %s\n", r.kind)
	fmt.Fprintf(w, "hash:           %s (seed from %s)\n", hash, r.strategy.Source())
	fmt.Fprintf(w, "keys read:      %d\n", r.lines)
	fmt.Fprintf(w, "duplicates:     %d\n", r.duplicates)
	fmt.Fprintf(w, "released:       %d\n", r.released)
	fmt.Fprintf(w, "deleted:        %d\n", r.deleted)
	fmt.Fprintf(w, "entries:        %d\n", r.stats.Entries)
	fmt.Fprintf(w, "buckets used:   %d/%d\n", r.stats.BucketsUsed, r.stats.Buckets)
	fmt.Fprintf(w, "longest bucket: %d\n", r.stats.LongestBucket)
	fmt.Fprintf(w, "capacity:       %d\n", r.stats.Capacity)
}

// load reads the keys from in and loads them into a table of the configured
// kind.
func load(cfg Config, in io.Reader, log *zap.Logger) (report, error) {
	var lines []string
	s := bufio.NewScanner(in)
	s.Buffer(nil, maxKeyLen)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return report{}, errors.Wrap(err, "reading keys")
	}

	switch cfg.Kind {
	case kindInt:
		keys := make([]int, len(lines))
		for i, l := range lines {
			k, err := strconv.Atoi(l)
			if err != nil {
				return report{}, errors.Wrapf(err, "line %d", i+1)
			}
			keys[i] = k
		}
		var r report
		t := buckethash.NewInt[int](buckethash.WithKeyRelease[int, int](func(int) { r.released++ }))
		return fill(cfg, t, keys, &r, log)
	default:
		var r report
		t := buckethash.NewString[int](buckethash.WithKeyRelease[string, int](func(string) { r.released++ }))
		return fill(cfg, t, lines, &r, log)
	}
}

// fill adds keys to t, each mapped to its line number, and deletes every
// cfg.DeleteEvery-th distinct key. The table is closed before returning and
// r.released includes the keys released by Close.
func fill[K buckethash.Key](
	cfg Config, t *buckethash.Table[K, int], keys []K, r *report, log *zap.Logger,
) (report, error) {
	defer t.Close()
	r.kind = cfg.Kind
	r.strategy = t.Strategy()
	r.lines = len(keys)

	add := t.Add
	if cfg.Unique {
		add = t.AddUnique
	}
	var distinct []K
	for i, k := range keys {
		_, present := t.Find(k)
		err := add(k, i+1)
		switch {
		case errors.Is(err, buckethash.ErrExists):
			r.duplicates++
		case err != nil:
			return report{}, errors.Wrapf(err, "line %d", i+1)
		case present:
			r.duplicates++
		default:
			distinct = append(distinct, k)
		}
	}
	log.Debug("loaded keys",
		zap.Int("lines", r.lines), zap.Int("duplicates", r.duplicates), zap.Int("entries", t.Count()))

	if cfg.DeleteEvery > 0 {
		for i := cfg.DeleteEvery - 1; i < len(distinct); i += cfg.DeleteEvery {
			if err := t.Delete(distinct[i]); err != nil {
				return report{}, errors.Wrapf(err, "deleting %v", distinct[i])
			}
			r.deleted++
		}
		log.Debug("deleted keys", zap.Int("deleted", r.deleted), zap.Int("entries", t.Count()))
	}

	r.stats = t.Stats()
	t.Close()
	return *r, nil
}
