// Package config handles patchvm.toml runtime configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
)

// FileName is the configuration file looked for by Find.
const FileName = "patchvm.toml"

// DEFAULT_CAPACITY is the code buffer size used when the file names
// none.
const DEFAULT_CAPACITY = 64 * 1024

// Size is a byte count that parses from human-readable text like
// "64KiB" or "1MB".
type Size int

// UnmarshalText implements encoding.TextUnmarshaler for TOML string
// values.
func (size *Size) UnmarshalText(text []byte) (err error) {
	bytes, err := units.RAMInBytes(string(text))
	if err != nil {
		err = &ErrSize{Text: string(text), Err: err}
		return
	}

	*size = Size(bytes)

	return
}

// String renders the size back in human-readable form.
func (size Size) String() string {
	return units.BytesSize(float64(size))
}

// Buffer configures the executable code buffer.
type Buffer struct {
	Capacity Size `toml:"capacity"`
}

// Watch configures source-file watch mode.
type Watch struct {
	Enabled bool   `toml:"enabled"`
	Entry   string `toml:"entry"` // Label to (re)start execution at on each swap.
}

// Config is the full patchvm.toml contents.
type Config struct {
	Verbose bool   `toml:"verbose"`
	Buffer  Buffer `toml:"buffer"`
	Watch   Watch  `toml:"watch"`

	// Dir is the directory containing the file (set at load time).
	Dir string `toml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Buffer: Buffer{Capacity: DEFAULT_CAPACITY},
	}
}

// Load parses the configuration file in the given directory.
func Load(dir string) (cfg *Config, err error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		err = &ErrRead{Path: path, Err: err}
		return
	}

	cfg = Default()
	if err = toml.Unmarshal(data, cfg); err != nil {
		cfg = nil
		err = &ErrParse{Path: path, Err: err}
		return
	}

	if cfg.Dir, err = filepath.Abs(dir); err != nil {
		cfg = nil
		return
	}

	if cfg.Buffer.Capacity <= 0 {
		cfg.Buffer.Capacity = DEFAULT_CAPACITY
	}

	return
}

// Find walks up from startDir looking for the configuration file and
// loads it. A missing file is not an error; the defaults come back
// instead.
func Find(startDir string) (cfg *Config, err error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, statErr := os.Stat(path); statErr == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			cfg = Default()
			return
		}
		dir = parent
	}
}
