package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a credential store file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor returns the format implied by the file extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported credentials file extension %q (expected .json, .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

func (f Format) unmarshal(data []byte, creds *Credentials) error {
	switch f {
	case FormatJSON:
		return json.Unmarshal(data, creds)
	case FormatYAML:
		return yaml.Unmarshal(data, creds)
	case FormatTOML:
		return toml.Unmarshal(data, creds)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

func (f Format) marshal(creds *Credentials) ([]byte, error) {
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(creds, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(creds)
	case FormatTOML:
		return toml.Marshal(creds)
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}
