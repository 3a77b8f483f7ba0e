package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stemsi/ept-backend/internal/model"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported question file format")

// Format identifies a question file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

type wrapped[T any] struct {
	Questions []T `json:"questions" yaml:"questions"`
}

// decode accepts either a bare list or an object with a "questions" list.
func decode[T any](data []byte, format Format) ([]T, error) {
	var list []T
	var obj wrapped[T]

	switch format {
	case FormatJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			if err := json.Unmarshal(trimmed, &obj); err != nil {
				return nil, fmt.Errorf("decode json: %w", err)
			}
			return obj.Questions, nil
		}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return list, nil
	case FormatYAML:
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		if err := yaml.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return obj.Questions, nil
	}
	return nil, ErrUnsupportedFormat
}

// DecodeRaw parses loosely typed questions for Normalize.
func DecodeRaw(data []byte, format Format) ([]RawQuestion, error) {
	return decode[RawQuestion](data, format)
}

// ReadRawFile reads a JSON or YAML file of loosely typed questions.
func ReadRawFile(path string) ([]RawQuestion, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return DecodeRaw(data, format)
}

// LoadQuestionsFile reads an already normalized question file and validates it.
func LoadQuestionsFile(path string) ([]model.Question, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	qs, err := decode[model.Question](data, format)
	if err != nil {
		return nil, err
	}
	if err := model.ValidateSet(qs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return qs, nil
}
