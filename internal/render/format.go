// Package render implements the markdown renderer (C11): a
// deterministic, pre-sorted rendering of a model.Bundle into either
// stable markdown or JSON.
//
// Grounded on the teacher's internal/output/format.go Format/Density
// enum pair (a small closed set of output shapes, each with a
// ParseX/String/validation trio) applied to spec.md §4.11's bundle
// sections instead of the teacher's Entity/Graph/Impact output types.
package render

import (
	"fmt"
	"strings"
)

// Format selects the wire shape RenderBundle produces.
type Format string

const (
	// FormatMarkdown is the default, human-facing rendering spec.md
	// §4.11 specifies (header, evidence table, stopping reasons, token
	// report, content sections).
	FormatMarkdown Format = "markdown"

	// FormatJSON renders the Bundle as indented JSON, used by `pampax
	// assemble --format json` for machine consumption.
	FormatJSON Format = "json"
)

// ParseFormat parses a format string into a Format value. Accepts
// "markdown"/"md" and "json" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid format: %q (expected markdown or json)", s)
	}
}

func (f Format) String() string { return string(f) }

// Density controls how much of each bundle item's content the
// Content sections include, matching the teacher's sparse/medium/dense
// scale applied to Evidence-backed items rather than entities.
type Density string

const (
	// DensitySparse omits the Content sections entirely: header,
	// evidence table, stopping reasons, and token report only.
	DensitySparse Density = "sparse"

	// DensityMedium includes each kept item's signature/doc capsule in
	// its content section rather than full source (the default).
	DensityMedium Density = "medium"

	// DensityDense includes full span content in the content sections.
	DensityDense Density = "dense"
)

// ParseDensity parses a density string into a Density value.
func ParseDensity(s string) (Density, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sparse":
		return DensitySparse, nil
	case "medium", "":
		return DensityMedium, nil
	case "dense":
		return DensityDense, nil
	default:
		return "", fmt.Errorf("invalid density: %q (expected sparse, medium, or dense)", s)
	}
}

func (d Density) String() string { return string(d) }

// DefaultFormat and DefaultDensity are used when a caller doesn't
// specify either flag.
const (
	DefaultFormat  = FormatMarkdown
	DefaultDensity = DensityMedium
)
