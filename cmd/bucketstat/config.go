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
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

const (
	kindInt    = "int"
	kindString = "string"
)

// Config is the bucketstat configuration. It is read from a TOML file and
// individual fields may be overridden on the command line.
//
//	kind = "string"
//	unique = false
//	delete-every = 10
//
//	[log]
//	level = "debug"
//	file = "/var/log/bucketstat.log"
//	max-size-mb = 100
//	max-backups = 3
type Config struct {
	// Kind selects the table kind: "int" or "string".
	Kind string `toml:"kind"`
	// Unique loads keys with AddUnique instead of Add, so that the first
	// occurrence of a duplicate key wins.
	Unique bool `toml:"unique"`
	// DeleteEvery deletes every n-th distinct key after loading. Zero
	// disables deletion.
	DeleteEvery int       `toml:"delete-every"`
	Log         LogConfig `toml:"log"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `toml:"level"`
	// File, if set, receives the log instead of stderr and is rotated once
	// it reaches MaxSizeMB.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max-size-mb"`
	MaxBackups int    `toml:"max-backups"`
}

func defaultConfig() Config {
	return Config{
		Kind: kindString,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// loadConfig returns the default configuration overlaid with the file at
// path, if path is not empty. Unknown keys are an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "decoding %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.Newf("%s: unknown configuration keys: %s",
			path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Kind {
	case kindInt, kindString:
	default:
		return errors.Newf("invalid kind %q: must be %q or %q", c.Kind, kindInt, kindString)
	}
	if c.DeleteEvery < 0 {
		return errors.Newf("invalid delete-every %d: must not be negative", c.DeleteEvery)
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return errors.Newf("invalid log max-size-mb %d: must be positive", c.Log.MaxSizeMB)
	}
	return nil
}
