// File: internal/usecase/document_uc.go
package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"transcribe-jobs/internal/domain"
	"transcribe-jobs/internal/domain/model"
)

// Compile-time check
var _ DocumentUseCase = (*documentUC)(nil)

// DocumentUseCase answers read-only queries over a transcript document on disk.
type DocumentUseCase interface {
	Load(path string) (*model.Document, error)
	Keys(doc *model.Document) []string
	Key(doc *model.Document, key string) (any, error)
	// Results returns the "results" list, or with key set, that key aggregated across entries.
	Results(doc *model.Document, key string) (any, error)
	Summary(doc *model.Document) (any, error)
	Text(doc *model.Document, mode model.TextMode) (model.TextView, error)
}

type documentUC struct{}

func NewDocumentUseCase() *documentUC { return &documentUC{} }

func (d *documentUC) Load(path string) (*model.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return ParseDocument(b)
}

// ParseDocument decodes a JSON object, remembering the order of its top-level keys.
func ParseDocument(b []byte) (*model.Document, error) {
	doc := &model.Document{Fields: map[string]any{}}
	if err := json.Unmarshal(b, &doc.Fields); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil { // opening brace
		return nil, fmt.Errorf("parse document: %w", err)
	}
	seen := make(map[string]bool, len(doc.Fields))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		key, _ := tok.(string)
		if !seen[key] {
			seen[key] = true
			doc.Keys = append(doc.Keys, key)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parse document: %w", err)
		}
	}
	return doc, nil
}

func (d *documentUC) Keys(doc *model.Document) []string {
	return append([]string(nil), doc.Keys...)
}

func (d *documentUC) Key(doc *model.Document, key string) (any, error) {
	v, ok := doc.Fields[key]
	if !ok {
		return nil, fmt.Errorf("%w: key %q", domain.ErrNotFound, key)
	}
	return v, nil
}

func (d *documentUC) Summary(doc *model.Document) (any, error) {
	return d.Key(doc, "summary")
}

func (d *documentUC) results(doc *model.Document) ([]map[string]any, error) {
	raw, err := d.Key(doc, "results")
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: results is not a list", domain.ErrInvalidArgument)
	}
	out := make([]map[string]any, 0, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: results[%d] is not an object", domain.ErrInvalidArgument, i)
		}
		out = append(out, m)
	}
	return out, nil
}

func (d *documentUC) Results(doc *model.Document, key string) (any, error) {
	if key == "" {
		return d.Key(doc, "results")
	}
	entries, err := d.results(doc)
	if err != nil {
		return nil, err
	}
	agg := map[string]any{}
	for _, e := range entries {
		v, ok := e[key]
		if !ok {
			continue
		}
		cur, seen := agg[key]
		if !seen {
			agg[key] = v
			continue
		}
		combined, err := Combine(cur, v)
		if err != nil {
			return nil, fmt.Errorf("aggregate %q: %w", key, err)
		}
		agg[key] = combined
	}
	return agg, nil
}

// Combine merges two JSON values of the same kind: strings concatenate,
// numbers add and lists append.
func Combine(a, b any) (any, error) {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av + bv, nil
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av + bv, nil
		}
	case []any:
		if bv, ok := b.([]any); ok {
			out := make([]any, 0, len(av)+len(bv))
			return append(append(out, av...), bv...), nil
		}
	}
	return nil, fmt.Errorf("%w: %T and %T", domain.ErrTypeMismatch, a, b)
}

func (d *documentUC) Text(doc *model.Document, mode model.TextMode) (model.TextView, error) {
	entries, err := d.results(doc)
	if err != nil {
		return model.TextView{}, err
	}
	if mode == "" {
		mode = model.TextBlock
	}

	view := model.TextView{Mode: mode}
	var block strings.Builder
	for i, e := range entries {
		text, _ := e["text"].(string)
		if mode == model.TextParagraphs {
			view.Segments = append(view.Segments, model.Segment{Index: i, Text: text})
			continue
		}
		block.WriteString(text)
	}

	switch mode {
	case model.TextParagraphs:
		return view, nil
	case model.TextSentences:
		for i, s := range strings.Split(block.String(), ".") {
			if s != "" {
				view.Segments = append(view.Segments, model.Segment{Index: i, Text: s})
			}
		}
		return view, nil
	case model.TextBlock:
		view.Text = block.String()
		return view, nil
	}
	return model.TextView{}, fmt.Errorf("%w: text mode %q", domain.ErrInvalidArgument, mode)
}

// ResultsFilename is where Results output is saved.
func ResultsFilename(key string) string {
	if key == "" {
		return "results.json"
	}
	return key + ".json"
}
