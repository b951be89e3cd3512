// Package config fills env-tagged structs from the process environment and
// optional dotenv files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Load parses env tags on cfg, for example:
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
//
// Values come from dotenvFiles, later files overriding earlier ones, then
// from the process environment, which wins over every file. Missing files
// are skipped. The process environment is never modified.
func Load(cfg any, dotenvFiles ...string) error {
	vars, err := readDotenv(dotenvFiles)
	if err != nil {
		return err
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func readDotenv(files []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, f := range files {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range m {
			vars[k] = v
		}
	}
	return vars, nil
}
