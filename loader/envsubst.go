package loader

import (
	"fmt"
	"os"
	"regexp"
)

// envVarPattern matches ${ENV_NAME} placeholders, the JSON-manifest analogue
// of dexidp-dex's cmd/dex/config_env_replacer.go $FOO-style substitution.
// Unlike dex's replacer (which walks a decoded YAML struct via reflection),
// manifests here are walked as generic decoded JSON (map[string]any/[]any),
// since a manifest's config shape is connector-specific and never a fixed Go
// struct.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv recursively replaces ${ENV_NAME} placeholders found in any
// string value reachable within raw. A placeholder naming an unset variable
// fails the whole call rather than leaving the literal placeholder text in
// place. The loader calls this once on the whole decoded manifest, so an
// unset variable anywhere in a manifest fails every instance it declares
// (one ManifestError with no InstanceID); other manifests still load.
func substituteEnv(raw any) (any, error) {
	switch t := raw.(type) {
	case string:
		var missing string
		replaced := envVarPattern.ReplaceAllStringFunc(t, func(m string) string {
			name := envVarPattern.FindStringSubmatch(m)[1]
			if v, ok := os.LookupEnv(name); ok {
				return v
			}
			if missing == "" {
				missing = name
			}
			return m
		})
		if missing != "" {
			return nil, fmt.Errorf("environment variable %q is not set", missing)
		}
		return replaced, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			sv, err := substituteEnv(v)
			if err != nil {
				return nil, err
			}
			out[k] = sv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			sv, err := substituteEnv(v)
			if err != nil {
				return nil, err
			}
			out[i] = sv
		}
		return out, nil
	default:
		return raw, nil
	}
}
