package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/sqlgraph/internal/atomicfile"
)

const fileHeader = `# sqlgraph configuration
#
# dialect.name: sqlite or postgres
# log.level:    debug, info, warn, error
# metrics.addr: listen address for /metrics, empty to disable

`

// SaveTo validates cfg and replaces path with its TOML encoding. A nil cfg
// saves the defaults. Readers never observe a partially written file.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	f, err := atomicfile.Create(path, 0o644)
	if err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	if _, err := f.WriteString(fileHeader); err != nil {
		f.Abort()
		return fmt.Errorf("write config %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Abort()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := f.Commit(); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// CreateDefault saves the defaults to path unless something already exists
// there, reporting whether it wrote a file.
func CreateDefault(path string) (bool, error) {
	switch _, err := os.Stat(path); {
	case err == nil:
		return false, nil
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}
	if err := SaveTo(path, Default()); err != nil {
		return false, err
	}
	return true, nil
}
