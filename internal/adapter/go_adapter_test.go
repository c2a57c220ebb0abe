package adapter

import (
	"context"
	"testing"

	"github.com/anthropics/pampax/internal/model"
)

const sampleGoSource = `package demo

// Greet returns a greeting for name.
func Greet(name string) string {
	return formatGreeting(name)
}

func formatGreeting(name string) string {
	return "hello " + name
}

// Widget is a demo type.
type Widget struct {
	Name string
}

// Describe returns a description of w.
func (w *Widget) Describe() string {
	return Greet(w.Name)
}
`

func TestGoAdapterSupports(t *testing.T) {
	a := NewGoAdapter()
	if !a.Supports("pkg/foo.go") {
		t.Error("expected Supports(foo.go) = true")
	}
	if a.Supports("pkg/foo_test.go") {
		t.Error("expected Supports(foo_test.go) = false")
	}
	if a.Supports("pkg/foo.py") {
		t.Error("expected Supports(foo.py) = false")
	}
}

func TestGoAdapterParseExtractsSpans(t *testing.T) {
	a := NewGoAdapter()
	result, err := a.Parse(context.Background(), []FileInput{
		{Repo: "demo", Path: "demo.go", Content: []byte(sampleGoSource)},
	}, nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	names := make(map[string]model.Span)
	for _, sp := range result.Spans {
		names[sp.Name] = sp
	}

	for _, want := range []string{"Greet", "formatGreeting", "Widget", "Describe"} {
		if _, ok := names[want]; !ok {
			t.Errorf("expected span named %q, got spans: %v", want, names)
		}
	}

	greet := names["Greet"]
	if greet.Kind != model.KindFunction {
		t.Errorf("Greet.Kind = %q, want function", greet.Kind)
	}
	if greet.Doc == "" {
		t.Error("expected Greet to have a doc comment")
	}

	describe := names["Describe"]
	if describe.Kind != model.KindMethod {
		t.Errorf("Describe.Kind = %q, want method", describe.Kind)
	}
}

func TestGoAdapterParseExtractsCallEdges(t *testing.T) {
	a := NewGoAdapter()
	result, err := a.Parse(context.Background(), []FileInput{
		{Repo: "demo", Path: "demo.go", Content: []byte(sampleGoSource)},
	}, nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	byID := make(map[string]model.Span)
	for _, sp := range result.Spans {
		byID[sp.ID] = sp
	}

	foundGreetCallsFormat := false
	foundDescribeCallsGreet := false
	for _, e := range result.Edges {
		if e.Kind != model.EdgeCall {
			t.Errorf("unexpected edge kind %q", e.Kind)
		}
		from, to := byID[e.From], byID[e.To]
		if from.Name == "Greet" && to.Name == "formatGreeting" {
			foundGreetCallsFormat = true
		}
		if from.Name == "Describe" && to.Name == "Greet" {
			foundDescribeCallsGreet = true
		}
	}
	if !foundGreetCallsFormat {
		t.Error("expected a call edge Greet -> formatGreeting")
	}
	if !foundDescribeCallsGreet {
		t.Error("expected a call edge Describe -> Greet")
	}
}

func TestGoAdapterSpanIDDeterministic(t *testing.T) {
	a := NewGoAdapter()
	r1, err := a.Parse(context.Background(), []FileInput{{Repo: "demo", Path: "demo.go", Content: []byte(sampleGoSource)}}, nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	r2, err := a.Parse(context.Background(), []FileInput{{Repo: "demo", Path: "demo.go", Content: []byte(sampleGoSource)}}, nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(r1.Spans) != len(r2.Spans) {
		t.Fatalf("got %d and %d spans across two parses", len(r1.Spans), len(r2.Spans))
	}
	for i := range r1.Spans {
		if r1.Spans[i].ID != r2.Spans[i].ID {
			t.Errorf("span id not stable across parses: %q vs %q", r1.Spans[i].ID, r2.Spans[i].ID)
		}
	}
}

func TestRegistryFor(t *testing.T) {
	reg := NewRegistry(NewGoAdapter())
	if reg.For("a.go") == nil {
		t.Error("expected a.go to resolve to the go adapter")
	}
	if reg.For("a.rb") != nil {
		t.Error("expected a.rb to resolve to no adapter")
	}
}
