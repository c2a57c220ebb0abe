// Package model defines the immutable data entities shared across the
// retrieval and assembly pipeline: spans, edges, memory items, search
// results, evidence, and the assembled bundle.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SpanKind enumerates the kinds of source unit a Span can represent.
type SpanKind string

const (
	KindModule    SpanKind = "module"
	KindClass     SpanKind = "class"
	KindFunction  SpanKind = "function"
	KindMethod    SpanKind = "method"
	KindField     SpanKind = "field"
	KindConst     SpanKind = "const"
	KindInterface SpanKind = "interface"
	KindEnum      SpanKind = "enum"
	KindOther     SpanKind = "other"
)

// ByteRange is a half-open [Start,End) byte offset range within a file.
type ByteRange struct {
	Start int
	End   int
}

// Span is a parsed unit of source, produced by an Adapter and persisted
// by the Store. Spans are immutable once published; the only way a span
// is removed is a reindex that drops its id.
type Span struct {
	ID         string
	Repo       string
	Path       string
	ByteRange  ByteRange
	Kind       SpanKind
	Name       string
	Signature  string
	Doc        string
	Parents    []string
	References []string

	// Content holds the full source text for the span. It is not part of
	// the id hash (content can be re-read from disk); Capsule derives a
	// shortened form of it for budget degradation.
	Content string
}

// Capsule returns a reduced form of the span: signature plus a short doc
// head, used by the token counter's degrade pass before a span is
// dropped entirely from a bundle.
func (s *Span) Capsule() string {
	var b strings.Builder
	if s.Signature != "" {
		b.WriteString(s.Signature)
	} else if s.Name != "" {
		b.WriteString(s.Name)
	}
	if s.Doc != "" {
		head := s.Doc
		if idx := strings.IndexByte(head, '\n'); idx >= 0 {
			head = head[:idx]
		}
		if b.Len() > 0 {
			b.WriteString(" — ")
		}
		b.WriteString(head)
	}
	return b.String()
}

// SpanIDInput carries the attributes a Span id is a pure function of.
// Two indexings that produce identical SpanIDInput values must produce
// identical ids (invariant 1, spec.md §3).
type SpanIDInput struct {
	Repo         string
	Path         string
	ByteStart    int
	ByteEnd      int
	Kind         SpanKind
	Name         string
	Signature    string
	DocHash      string
	ParentsHash  string
}

// ComputeSpanID derives the stable span id from its defining attributes.
// It is a pure SHA-256 digest over a delimited encoding of the input,
// truncated to 32 hex characters (128 bits) for compact storage while
// keeping collision probability negligible at repo scale.
func ComputeSpanID(in SpanIDInput) string {
	h := sha256.New()
	parts := []string{
		in.Repo, in.Path,
		itoa(in.ByteStart), itoa(in.ByteEnd),
		string(in.Kind), in.Name, in.Signature,
		in.DocHash, in.ParentsHash,
	}
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// HashText returns a short content hash suitable for DocHash/ParentsHash
// inputs to ComputeSpanID.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
