package adapter

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/anthropics/pampax/internal/model"
)

// goNodeKinds maps tree-sitter Go grammar node types to Span kinds,
// grounded on the teacher's parser.GoNodeTypes table.
var goNodeKinds = map[string]model.SpanKind{
	"function_declaration": model.KindFunction,
	"method_declaration":   model.KindMethod,
	"type_declaration":     model.KindClass,
	"const_declaration":    model.KindConst,
}

// GoAdapter is the reference Adapter implementation: a single-language
// tree-sitter parser for Go source, used for local smoke-testing of
// the retrieval pipeline without an external indexer.
type GoAdapter struct{}

// NewGoAdapter constructs the reference Go adapter.
func NewGoAdapter() *GoAdapter { return &GoAdapter{} }

func (a *GoAdapter) ID() string { return "go-tree-sitter" }

func (a *GoAdapter) Supports(path string) bool {
	return strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go")
}

func (a *GoAdapter) Parse(ctx context.Context, files []FileInput, onProgress func(ProgressEvent)) (Result, error) {
	var result Result
	var firstErr error

	// pending collects (caller span id, callee name) pairs, resolved
	// into edges once every file's spans are known
	// (a call may target a function defined in a different file).
	type pendingCall struct {
		from string
		to   string
	}
	var pending []pendingCall
	byName := make(map[string]string) // span name -> span id, last-wins within a repo's batch

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	for i, f := range files {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		tree, err := parser.ParseCtx(ctx, nil, f.Content)
		if err != nil {
			firstErr = err
			if onProgress != nil {
				onProgress(ProgressEvent{Path: f.Path, Done: i + 1, Total: len(files), Err: err})
			}
			continue
		}

		root := tree.RootNode()
		spans, calls := extractGoFile(f, root)
		for _, sp := range spans {
			result.Spans = append(result.Spans, sp)
			byName[sp.Name] = sp.ID
		}
		for _, c := range calls {
			pending = append(pending, pendingCall{from: c.from, to: c.toName})
		}
		tree.Close()

		if onProgress != nil {
			onProgress(ProgressEvent{Path: f.Path, Done: i + 1, Total: len(files)})
		}
	}

	seen := make(map[string]bool)
	for _, c := range pending {
		toID, ok := byName[c.to]
		if !ok || toID == c.from {
			continue
		}
		e := model.Edge{From: c.from, To: toID, Kind: model.EdgeCall, Weight: model.DefaultEdgeWeights[model.EdgeCall]}
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		result.Edges = append(result.Edges, e)
	}

	return result, firstErr
}

type goCall struct {
	from   string
	toName string
}

func extractGoFile(f FileInput, root *sitter.Node) ([]model.Span, []goCall) {
	var spans []model.Span
	var calls []goCall

	walkGoNode(root, func(node *sitter.Node) {
		kind, ok := goNodeKinds[node.Type()]
		if !ok {
			return
		}

		nameNode := findGoChildByFieldName(node, "name")
		if nameNode == nil && (kind == model.KindClass || kind == model.KindConst) {
			// type and const declarations carry the name on their first
			// type_spec/const_spec child, not on the declaration itself.
			if spec := node.NamedChild(0); spec != nil {
				nameNode = findGoChildByFieldName(spec, "name")
			}
		}
		if nameNode == nil {
			return
		}
		name := nodeText(f.Content, nameNode)
		doc := precedingGoComment(f.Content, node)
		signature := nodeText(f.Content, node)
		if idx := strings.Index(signature, "{"); idx >= 0 {
			signature = strings.TrimSpace(signature[:idx])
		}

		id := model.ComputeSpanID(model.SpanIDInput{
			Repo: f.Repo, Path: f.Path,
			ByteStart: int(node.StartByte()), ByteEnd: int(node.EndByte()),
			Kind: kind, Name: name, Signature: signature,
			DocHash: model.HashText(doc),
		})

		spans = append(spans, model.Span{
			ID: id, Repo: f.Repo, Path: f.Path,
			ByteRange: model.ByteRange{Start: int(node.StartByte()), End: int(node.EndByte())},
			Kind:      kind, Name: name, Signature: signature, Doc: doc,
			Content: nodeText(f.Content, node),
		})

		if kind == model.KindFunction || kind == model.KindMethod {
			bodyNode := findGoChildByFieldName(node, "body")
			if bodyNode != nil {
				for _, calleeName := range collectGoCallees(f.Content, bodyNode) {
					calls = append(calls, goCall{from: id, toName: calleeName})
				}
			}
		}
	})

	return spans, calls
}

func walkGoNode(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walkGoNode(node.Child(i), visit)
	}
}

func findGoChildByFieldName(node *sitter.Node, field string) *sitter.Node {
	if node == nil {
		return nil
	}
	return node.ChildByFieldName(field)
}

func collectGoCallees(src []byte, body *sitter.Node) []string {
	var names []string
	walkGoNode(body, func(node *sitter.Node) {
		if node.Type() != "call_expression" {
			return
		}
		fn := findGoChildByFieldName(node, "function")
		if fn == nil {
			return
		}
		name := nodeText(src, fn)
		// A selector like pkg.Func or recv.Method: keep the final
		// segment, since spans are keyed by bare identifier name.
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		names = append(names, name)
	})
	return names
}

// precedingGoComment collects a contiguous run of comment nodes
// immediately preceding node, grounded on the teacher's
// extractPrecedingComment (Go doc comments have no blank line before
// the declaration they document).
func precedingGoComment(src []byte, node *sitter.Node) string {
	var comments []string
	sibling := node.PrevSibling()
	for sibling != nil && sibling.Type() == "comment" {
		comments = append([]string{nodeText(src, sibling)}, comments...)
		sibling = sibling.PrevSibling()
	}
	return strings.Join(comments, "\n")
}

func nodeText(src []byte, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return node.Content(src)
}
