package bracket

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed formats/*.json
var builtin embed.FS

const DefaultFormat = "double-elim-8"

type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingYAML
)

var ErrUnknownFormat = errors.New("unknown bracket format")

// EncodingOf derives the encoding from the file extension.
func EncodingOf(path string) (Encoding, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return EncodingJSON, nil
	case ".yaml", ".yml":
		return EncodingYAML, nil
	}
	return 0, fmt.Errorf("unsupported bracket file extension: %s", path)
}

// Parse decodes and validates a format document. Unknown fields are
// rejected.
func Parse(data []byte, enc Encoding) (*Format, error) {
	f := &Format{}
	switch enc {
	case EncodingJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("decode bracket format: %w", err)
		}
	case EncodingYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("decode bracket format: %w", err)
		}
	}
	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads a format from a JSON or YAML file.
func Load(path string) (*Format, error) {
	enc, err := EncodingOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// Builtin returns one of the formats shipped with the binary.
func Builtin(name string) (*Format, error) {
	data, err := builtin.ReadFile("formats/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	f, err := Parse(data, EncodingJSON)
	if err != nil {
		return nil, fmt.Errorf("builtin %s: %w", name, err)
	}
	if f.Name == "" {
		f.Name = name
	}
	return f, nil
}

// BuiltinNames lists the embedded formats.
func BuiltinNames() []string {
	entries, err := builtin.ReadDir("formats")
	if err != nil {
		return nil
	}
	ret := make([]string, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ret
}

// LoadOrBuiltin loads nameOrPath if it names a file, otherwise a builtin format of that
// name. An empty value selects the default format.
func LoadOrBuiltin(nameOrPath string) (*Format, error) {
	if nameOrPath == "" {
		return Builtin(DefaultFormat)
	}
	if _, err := os.Stat(nameOrPath); err == nil {
		return Load(nameOrPath)
	}
	return Builtin(nameOrPath)
}
