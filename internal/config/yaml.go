package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/habitenforcer/internal/storage/postgres"
)

func isPostgres(db string) bool { return postgres.IsConnString(db) }

// YAML is a kong.ConfigurationLoader for flat YAML files whose keys are flag
// names, with either dashes or underscores.
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid YAML configuration: %w", err)
	}
	normalized := make(map[string]any, len(values))
	for k, v := range values {
		normalized[strings.ReplaceAll(strings.ToLower(k), "_", "-")] = v
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		v, ok := normalized[flag.Name]
		if !ok {
			return nil, nil
		}
		// kong decodes strings through the flag's mapper, so durations and
		// numbers survive YAML's own typing.
		switch t := v.(type) {
		case string, bool:
			return t, nil
		default:
			return fmt.Sprint(t), nil
		}
	}
	return f, nil
}
