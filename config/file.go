package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML document at path onto cfg.  Keys absent
// from the file leave cfg untouched; unknown keys are an error.
// Durations are written the Go way ("5s", "50ms").
//
//	listen: true
//	local_port: 8888
//	backlog: 1024
//	timeout: 5s
//	delegate: sum
func LoadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()
	return decode(cfg, f, path)
}

func decode(cfg *Config, r io.Reader, name string) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty file
		}
		return fmt.Errorf("config file %s: %w", name, err)
	}
	return nil
}
