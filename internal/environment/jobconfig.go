package environment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	inputDataConfigFile = "inputdataconfig.json"
	resourceConfigFile  = "resourceconfig.json"
	hyperparametersFile = "hyperparameters.json"
)

type resourceConfig struct {
	CurrentHost          string   `json:"current_host"`
	Hosts                []string `json:"hosts"`
	NetworkInterfaceName string   `json:"network_interface_name,omitempty"`
}

// readConfigFile returns nil data when the file does not exist; local runs
// have no job config.
func readConfigFile(dir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// readInputDataConfig returns the channel names declared for the job.
func readInputDataConfig(dir string) ([]string, error) {
	data, err := readConfigFile(dir, inputDataConfigFile)
	if err != nil || data == nil {
		return nil, err
	}
	var channels map[string]json.RawMessage
	if err := decodeJSON(data, &channels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", inputDataConfigFile, err)
	}
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func readResourceConfig(dir string) (resourceConfig, error) {
	var res resourceConfig
	data, err := readConfigFile(dir, resourceConfigFile)
	if err != nil || data == nil {
		return res, err
	}
	if err := decodeJSON(data, &res); err != nil {
		return res, fmt.Errorf("parse %s: %w", resourceConfigFile, err)
	}
	return res, nil
}

// readHyperparameters flattens hyperparameters.json into strings. SageMaker
// writes every value as a string; anything else is re-encoded as JSON.
func readHyperparameters(dir string) (map[string]string, error) {
	out := map[string]string{}
	data, err := readConfigFile(dir, hyperparametersFile)
	if err != nil || data == nil {
		return out, err
	}
	var raw map[string]any
	if err := decodeJSON(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", hyperparametersFile, err)
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode hyperparameter %q: %w", k, err)
		}
		out[k] = string(enc)
	}
	return out, nil
}

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
