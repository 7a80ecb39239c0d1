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

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, contents string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func numberedKeys(n int) string {
	var buf strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "%d\n", i)
	}
	return buf.String()
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)

	path := writeFile(t, "bucketstat.toml", `
kind = "int"
unique = true
delete-every = 3

[log]
level = "debug"
max-backups = 7
`)
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, Config{
		Kind:        kindInt,
		Unique:      true,
		DeleteEvery: 3,
		Log: LogConfig{
			Level:      "debug",
			MaxSizeMB:  100,
			MaxBackups: 7,
		},
	}, cfg)
	require.NoError(t, cfg.validate())

	_, err = loadConfig(writeFile(t, "bad.toml", "kind = \"int\"\nbuckets = 1024\n"))
	require.ErrorContains(t, err, "unknown configuration keys: buckets")

	_, err = loadConfig(writeFile(t, "broken.toml", "kind = \n"))
	require.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		mutate func(c *Config)
		err    string
	}{
		{func(c *Config) {}, ""},
		{func(c *Config) { c.Kind = "float" }, `invalid kind "float"`},
		{func(c *Config) { c.DeleteEvery = -1 }, "invalid delete-every -1"},
		{func(c *Config) { c.Log.Level = "loud" }, `invalid log level "loud"`},
		{func(c *Config) { c.Log.MaxSizeMB = 0 }, "invalid log max-size-mb 0"},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			cfg := defaultConfig()
			c.mutate(&cfg)
			err := cfg.validate()
			if c.err == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, c.err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	cfg := defaultConfig()
	cfg.Kind = kindInt
	cfg.DeleteEvery = 10

	r, err := load(cfg, strings.NewReader(numberedKeys(1000)+"5\n7\n"), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1002, r.lines)
	require.Equal(t, 2, r.duplicates)
	// Add replaces duplicates, releasing the displaced keys. Deletions and
	// the final Close release the rest.
	require.Equal(t, 2+100+900, r.released)
	require.Equal(t, 100, r.deleted)
	require.Equal(t, 900, r.stats.Entries)
	require.Equal(t, 512, r.stats.Buckets)

	cfg.Unique = true
	cfg.DeleteEvery = 0
	r, err = load(cfg, strings.NewReader("1\n2\n1\n"), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1, r.duplicates)
	require.Equal(t, 2, r.released)
	require.Equal(t, 2, r.stats.Entries)

	_, err = load(cfg, strings.NewReader("1\nx\n"), zap.NewNop())
	require.ErrorContains(t, err, "line 2")
}

func TestLoadStrings(t *testing.T) {
	cfg := defaultConfig()
	r, err := load(cfg, strings.NewReader("a\nb\na\x00c\n\n"), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, kindString, r.kind)
	require.Equal(t, 4, r.lines)
	require.Equal(t, 1, r.duplicates)
	require.Equal(t, 3, r.stats.Entries)
}

func TestLoadLongKeys(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	r, err := load(defaultConfig(), strings.NewReader(long+"\n"+long+"y\n"), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, r.stats.Entries)

	_, err = load(defaultConfig(), strings.NewReader(strings.Repeat("x", maxKeyLen+1)), zap.NewNop())
	require.ErrorContains(t, err, "reading keys")
}

func TestRun(t *testing.T) {
	keys := writeFile(t, "keys.txt", numberedKeys(500))
	logFile := filepath.Join(t.TempDir(), "bucketstat.log")
	config := writeFile(t, "bucketstat.toml", fmt.Sprintf(`
kind = "string"

[log]
level = "debug"
file = %q
`, logFile))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", config, "-kind", "int", "-keys", keys, "-delete-every", "5"},
		strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	require.Contains(t, out, "kind:           int\n")
	require.Contains(t, out, "keys read:      500\n")
	require.Contains(t, out, "released:       500\n")
	require.Contains(t, out, "deleted:        100\n")
	require.Contains(t, out, "entries:        400\n")
	require.Contains(t, out, "buckets used:   ")
	require.Contains(t, out, "/512\n")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"loaded keys"`)
}

func TestRunStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-log-level", "error"}, strings.NewReader("x\ny\nz\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), "entries:        3\n")
	require.Contains(t, stdout.String(), "kind:           string\n")
}

func TestRunErrors(t *testing.T) {
	testCases := []struct {
		args []string
		code int
		err  string
	}{
		{[]string{"-bogus"}, 2, "flag provided but not defined"},
		{[]string{"-kind", "float"}, 1, `invalid kind "float"`},
		{[]string{"-config", "/nonexistent/bucketstat.toml"}, 1, "decoding"},
		{[]string{"-kind", "int"}, 1, "loading keys"},
		{[]string{"-keys", "/nonexistent/keys.txt"}, 1, "opening keys"},
	}
	for _, c := range testCases {
		t.Run(strconv.Itoa(c.code), func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(c.args, strings.NewReader("not-a-number\n"), &stdout, &stderr)
			require.Equal(t, c.code, code)
			require.Contains(t, stderr.String(), c.err)
			require.Empty(t, stdout.String())
		})
	}
}
