package knowledge

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

//go:embed default.json
var defaultDocument []byte

// Format names a knowledge base document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// Parse decodes a knowledge base document. It does not validate it; Load does.
func Parse(data []byte, format Format) (*models.Document, error) {
	var doc models.Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json document: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml document: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("decode toml document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	return &doc, nil
}

// ReadFile reads and decodes the document at path.
func ReadFile(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return Parse(data, FormatFromPath(path))
}

// DefaultDocument returns a fresh decode of the built-in demo knowledge base.
func DefaultDocument() *models.Document {
	doc, err := Parse(defaultDocument, FormatJSON)
	if err != nil {
		panic("knowledge: embedded default document: " + err.Error())
	}
	return doc
}

// Source resolves a configured document path; empty means the built-in one.
func Source(path string) (*models.Document, error) {
	if path == "" {
		return DefaultDocument(), nil
	}
	return ReadFile(path)
}
