package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wedof-tools/sheetsync/pkg/errors"
	"github.com/wedof-tools/sheetsync/pkg/source"
)

// endpointsFile is the YAML shape of an endpoint catalog override.
type endpointsFile struct {
	Endpoints []source.Endpoint `yaml:"endpoints"`
}

// LoadEndpoints reads an endpoint catalog from a YAML file, substituting
// ${VAR} references with environment variable values. An empty path returns
// the built-in catalog.
func LoadEndpoints(filePath string) ([]source.Endpoint, error) {
	if filePath == "" {
		return source.DefaultEndpoints(), nil
	}

	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is operator-supplied
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read endpoints file")
	}

	content := substituteEnvVars(string(data))

	var file endpointsFile
	if err := yaml.Unmarshal([]byte(content), &file); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse endpoints file")
	}

	if len(file.Endpoints) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "endpoints file defines no endpoints")
	}

	for i, ep := range file.Endpoints {
		if ep.Name == "" || ep.Path == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"endpoint %d: name and path are required", i)
		}
	}

	return file.Endpoints, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
