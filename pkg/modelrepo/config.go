package modelrepo

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
)

// ConfigFileName is the name of a model's config file within its repository directory.
const ConfigFileName = "config.yaml"

// ModelConfig is the per-model configuration file, e.g.
//
//	name: classify_claim_value
//	version: "1"
//	kind: claim-value
//	parameters:
//	  high_value_threshold: 60000
//	outputs:
//	  - name: is_high_value_claim
//	    data_type: TYPE_BOOL
type ModelConfig struct {
	Name       string         `mapstructure:"name"`
	Version    string         `mapstructure:"version"`
	Kind       string         `mapstructure:"kind"`
	Parameters map[string]any `mapstructure:"parameters"`
	Outputs    []OutputConfig `mapstructure:"outputs"`
}

type OutputConfig struct {
	Name     string `mapstructure:"name"`
	DataType string `mapstructure:"data_type"`
}

// ParseModelConfig reads a YAML model config.
func ParseModelConfig(r io.Reader) (*ModelConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("version", "1")

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading model config: %w", err)
	}

	var cfg ModelConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling model config: %w", err)
	}

	if cfg.Name == "" {
		return nil, errors.New("name is required")
	}
	if cfg.Kind == "" {
		return nil, fmt.Errorf("model %q: kind is required", cfg.Name)
	}
	for _, output := range cfg.Outputs {
		if _, err := inference.ParseDatatype(output.DataType); err != nil {
			return nil, fmt.Errorf("model %q output %q: %w", cfg.Name, output.Name, err)
		}
	}
	return &cfg, nil
}

// Float returns a numeric parameter, or fallback when it is unset.
func (c *ModelConfig) Float(key string, fallback float64) (float64, error) {
	v, ok := c.Parameters[strings.ToLower(key)]
	if !ok {
		return fallback, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("model %q parameter %q: %w", c.Name, key, err)
	}
	return f, nil
}

// OutputDatatype returns the configured datatype of the named output, or fallback.
func (c *ModelConfig) OutputDatatype(name string, fallback inference.Datatype) inference.Datatype {
	for _, output := range c.Outputs {
		if output.Name == name {
			// Validated in ParseModelConfig.
			d, err := inference.ParseDatatype(output.DataType)
			if err == nil {
				return d
			}
		}
	}
	return fallback
}
