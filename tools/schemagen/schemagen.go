// Package main writes the package report schema and a per-metric schema
// generated from the metric catalogue.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/healthfang/pkg/report"
)

// Schema represents a JSON Schema.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        any                `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Extensions  map[string]string  `json:"x-healthfang,omitempty"`
}

var outputDir string

func main() {
	flag.StringVar(&outputDir, "o", "docs/schemas", "Output directory for schemas")
	flag.Parse()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(filepath.Join(outputDir, "report.json"), report.Schema(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report schema: %v\n", err)
		os.Exit(1)
	}

	if err := writeSchema("metrics", metricsSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing metrics schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("All schemas generated successfully")
}

// metricsSchema describes one repository metrics block, one property per
// catalogue entry. Every value may be null.
func metricsSchema() *Schema {
	names := report.MetricNames()
	props := make(map[string]*Schema, len(names))

	for _, name := range names {
		m, _ := report.Describe(name)

		props[name] = &Schema{
			Title:       m.DisplayName(),
			Description: m.Description(),
			Type:        []string{"number", "null"},
			Extensions:  map[string]string{"category": m.Type()},
		}
	}

	return &Schema{
		Schema:      "https://json-schema.org/draft-07/schema#",
		Title:       "Repository metrics",
		Description: "Metrics computed for one repository over the analysis window",
		Type:        "object",
		Properties:  props,
		Required:    names,
	}
}

func writeSchema(name string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	path := filepath.Join(outputDir, name+".json")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
