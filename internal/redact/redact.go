// Package redact strips disclosure-controlled fields from tool documents
// before they are served through a share token.
package redact

import (
	"encoding/json"
	"fmt"

	"github.com/dimitrije/toolshare/internal/models"
)

var (
	photoKeys     = []string{"photo_url", "photo_urls", "photos", "image_url", "image_urls"}
	noteKeys      = []string{"notes", "note", "personal_notes"}
	commentKeys   = []string{"comments", "comment_thread", "comment_threads"}
	sourceURLKeys = []string{"source_url", "source_urls"}
)

// Keys returns the object keys removed for the given flags.
func Keys(flags models.DisclosureFlags) map[string]struct{} {
	drop := make(map[string]struct{})
	add := func(keys []string) {
		for _, k := range keys {
			drop[k] = struct{}{}
		}
	}
	if !flags.Photos {
		add(photoKeys)
	}
	if !flags.Notes {
		add(noteKeys)
	}
	if !flags.Comments {
		add(commentKeys)
	}
	if !flags.SourceURL {
		add(sourceURLKeys)
	}
	return drop
}

// Apply removes every disallowed key at any depth of doc.
func Apply(doc json.RawMessage, flags models.DisclosureFlags) (json.RawMessage, error) {
	if len(doc) == 0 {
		return json.RawMessage("{}"), nil
	}

	var value any
	if err := json.Unmarshal(doc, &value); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	drop := Keys(flags)
	if len(drop) > 0 {
		value = walk(value, drop)
	}

	out, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, nil
}

func walk(v any, drop map[string]struct{}) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if _, ok := drop[k]; ok {
				delete(node, k)
				continue
			}
			node[k] = walk(child, drop)
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = walk(child, drop)
		}
		return node
	default:
		return v
	}
}
