package xenv

import (
	"os"

	"github.com/caarlos0/env/v8"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

/* example
type config struct {
	Port       int     `env:"PORT" yaml:"port"`
	Name       string  `env:"NAME" yaml:"name"`
	IntervalS  float64 `env:"INTERVAL_SECONDS" yaml:"interval_seconds"`
}
*/

// Load fills conf, which must already hold its defaults:
// the YAML file at path (optional) first, then set environment variables.
// Unset variables leave the field untouched, so no envDefault tags.
func Load(conf interface{}, path string) error {
	if path != "" {
		if err := LoadFile(conf, path); err != nil {
			return err
		}
	}
	return EnvLoad(conf)
}

func LoadFile(conf interface{}, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func EnvLoad(conf interface{}) error {
	return errors.Wrap(env.Parse(conf), "parse env")
}
