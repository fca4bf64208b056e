package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File extensions for supported codecs.
const (
	jsonExtension = ".json"
	yamlExtension = ".yaml"
	ymlExtension  = ".yml"
)

// Default indentation for pretty-printed JSON and YAML.
const (
	defaultJSONIndent = "    "
	defaultYAMLIndent = 2
)

// ErrUnknownExtension is returned when no codec handles a file extension.
var ErrUnknownExtension = errors.New("unknown report file extension")

// Codec defines how reports are serialized and deserialized.
type Codec interface {
	// Encode writes v to the writer.
	Encode(w io.Writer, v any) error
	// Decode reads v from the reader.
	Decode(r io.Reader, v any) error
	// Extension returns the file extension for this codec (e.g., ".json").
	Extension() string
}

// JSONCodec implements Codec using JSON encoding with optional indentation.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with four-space indentation.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultJSONIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(v)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding.
func (c *JSONCodec) Decode(r io.Reader, v any) error {
	err := json.NewDecoder(r).Decode(v)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// YAMLCodec implements Codec using YAML encoding.
type YAMLCodec struct{}

// NewYAMLCodec creates a YAML codec.
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Encode implements Codec.Encode using YAML encoding.
func (c *YAMLCodec) Encode(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(defaultYAMLIndent)

	err := encoder.Encode(v)
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using YAML decoding.
func (c *YAMLCodec) Decode(r io.Reader, v any) error {
	err := yaml.NewDecoder(r).Decode(v)
	if err != nil {
		return fmt.Errorf("yaml decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for YAML files.
func (c *YAMLCodec) Extension() string {
	return yamlExtension
}

// CodecForPath picks a codec from the file extension.
func CodecForPath(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case jsonExtension:
		return NewJSONCodec(), nil
	case yamlExtension, ymlExtension:
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, path)
	}
}

// LoadPackageReport reads a package report written in JSON or YAML.
func LoadPackageReport(path string) (*PackageReport, error) {
	codec, err := CodecForPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer file.Close()

	var rep PackageReport

	err = codec.Decode(file, &rep)
	if err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	return &rep, nil
}
