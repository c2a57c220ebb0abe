package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/anthropics/pampax/internal/model"
)

// Render dispatches to the formatter for format, writing bundle's
// rendering to w. It is the single entry point both the CLI's
// `assemble --format` flag and the MCP tool call into.
func Render(w io.Writer, bundle *model.Bundle, format Format, density Density) error {
	switch format {
	case FormatJSON:
		return encodeJSON(w, bundle)
	case FormatMarkdown, "":
		return renderMarkdown(w, bundle, density)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// RenderString is the string-returning convenience form of Render, used
// by tests and by callers that want the output in memory before
// deciding whether to write it to a file or stdout.
func RenderString(bundle *model.Bundle, format Format, density Density) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, bundle, format, density); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeJSON(w io.Writer, bundle *model.Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}

// renderMarkdown implements spec.md §4.11's stable layout: Header,
// Evidence table, Stopping reasons, Token report, Content sections.
// Every numeric value is printed with fixed precision and every list is
// pre-sorted, so two renderings of the same Bundle are byte-identical.
func renderMarkdown(w io.Writer, b *model.Bundle, density Density) error {
	var buf bytes.Buffer

	writeHeader(&buf, b)
	writeEvidenceTable(&buf, b)
	writeStoppingReasons(&buf, b)
	writeTokenReport(&buf, b)
	if density != DensitySparse {
		writeContentSections(&buf, b, density)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func writeHeader(buf *bytes.Buffer, b *model.Bundle) {
	fmt.Fprintf(buf, "# Bundle: %s\n\n", b.SessionID)
	fmt.Fprintf(buf, "- Intent: %s\n", b.Intent)
	fmt.Fprintf(buf, "- Policy: %s\n", b.Policy)
	fmt.Fprintf(buf, "- Budget: %d tokens\n", b.Tokens.Budget)
	fmt.Fprintf(buf, "- Used: %d tokens\n", b.Tokens.Used)
	fmt.Fprintf(buf, "- Model: %s\n", b.Tokens.Model)
	if b.Partial {
		fmt.Fprintf(buf, "- Partial: true\n")
	}
	fmt.Fprintln(buf)
}

func writeEvidenceTable(buf *bytes.Buffer, b *model.Bundle) {
	fmt.Fprintln(buf, "## Evidence")
	fmt.Fprintln(buf)
	fmt.Fprintln(buf, "| id | file | symbol | reason | edge | rank | cached |")
	fmt.Fprintln(buf, "|---|---|---|---|---|---|---|")

	items := make([]model.BundleItem, len(b.Items))
	copy(items, b.Items)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Span.Path != items[j].Span.Path {
			return items[i].Span.Path < items[j].Span.Path
		}
		return items[i].Span.ID < items[j].Span.ID
	})

	for _, it := range items {
		edge := "-"
		if it.Evidence.HasEdgeKind {
			edge = string(it.Evidence.EdgeKind)
		}
		reason := string(it.Evidence.Reason)
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(buf, "| %s | %s | %s | %s | %s | %d | %s |\n",
			it.Span.ID, it.Span.Path, it.Span.Name, reason, edge, it.Evidence.Rank, yesNo(it.Evidence.Cached))
	}

	if len(b.DroppedEvidence) > 0 {
		fmt.Fprintln(buf)
		fmt.Fprintln(buf, "### Dropped")
		fmt.Fprintln(buf)
		fmt.Fprintln(buf, "| id | source | reason |")
		fmt.Fprintln(buf, "|---|---|---|")
		dropped := make([]model.Evidence, len(b.DroppedEvidence))
		copy(dropped, b.DroppedEvidence)
		sort.Slice(dropped, func(i, j int) bool { return dropped[i].ItemID < dropped[j].ItemID })
		for _, ev := range dropped {
			fmt.Fprintf(buf, "| %s | %s | %s |\n", ev.ItemID, ev.Source, ev.Reason)
		}
	}
	fmt.Fprintln(buf)
}

func writeStoppingReasons(buf *bytes.Buffer, b *model.Bundle) {
	fmt.Fprintln(buf, "## Stopping reasons")
	fmt.Fprintln(buf)
	for _, sr := range b.StoppingReasons {
		fmt.Fprintf(buf, "- **%s** (%s, %s): %s\n", sr.Title, sr.Severity, sr.Phase, sr.Explanation)
	}
	fmt.Fprintln(buf)
}

func writeTokenReport(buf *bytes.Buffer, b *model.Bundle) {
	fmt.Fprintln(buf, "## Token report")
	fmt.Fprintln(buf)
	fmt.Fprintf(buf, "- kept: %d\n", len(b.Items))
	fmt.Fprintf(buf, "- degraded: %d\n", b.Tokens.Degraded)
	fmt.Fprintf(buf, "- dropped: %d\n", b.Tokens.Dropped)
	fmt.Fprintf(buf, "- used/budget: %d/%d\n", b.Tokens.Used, b.Tokens.Budget)
	fmt.Fprintln(buf)
}

// writeContentSections groups kept items by their producer source into
// the three sections spec.md §4.11 names: code (lexical/vector/graph
// sources), memory, and symbols.
func writeContentSections(buf *bytes.Buffer, b *model.Bundle, density Density) {
	var code, memory, symbols []model.BundleItem
	for _, it := range b.Items {
		switch it.Evidence.Source {
		case model.SourceMem:
			memory = append(memory, it)
		case model.SourceSym:
			symbols = append(symbols, it)
		default:
			code = append(code, it)
		}
	}

	writeSection(buf, "Code", code, density)
	writeSection(buf, "Symbols", symbols, density)
	writeSection(buf, "Memory", memory, density)
}

func writeSection(buf *bytes.Buffer, title string, items []model.BundleItem, density Density) {
	if len(items) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Span.Path != items[j].Span.Path {
			return items[i].Span.Path < items[j].Span.Path
		}
		return items[i].Span.ID < items[j].Span.ID
	})

	fmt.Fprintf(buf, "## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(buf, "### %s (%s)\n\n", it.Span.Name, it.Span.Path)
		body := it.Span.Content
		if density == DensityMedium {
			body = it.Span.Capsule()
		}
		if strings.TrimSpace(body) != "" {
			fmt.Fprintln(buf, "```")
			fmt.Fprintln(buf, body)
			fmt.Fprintln(buf, "```")
		}
		fmt.Fprintln(buf)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
