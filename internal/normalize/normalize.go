// Package normalize canonicalizes captured snapshots so that only meaningful
// differences between two implementations survive hashing.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	twmerge "github.com/Oudwins/tailwind-merge-go"

	"github.com/ternarybob/pixelparity/internal/models"
)

// TooltipWrapperClass is the charting tooltip wrapper. Its siblings in the
// class list are volatile per instance, so the list collapses to this token.
const TooltipWrapperClass = "recharts-tooltip-wrapper"

// CanonicalClasses resolves conflicting utility classes to their effective
// set, then sorts the tokens and joins them with single spaces.
func CanonicalClasses(class string) string {
	tokens := strings.Fields(class)
	if len(tokens) == 0 {
		return ""
	}
	for _, token := range tokens {
		if token == TooltipWrapperClass {
			return TooltipWrapperClass
		}
	}

	merged := strings.Fields(twmerge.Merge(strings.Join(tokens, " ")))
	sort.Strings(merged)

	out := merged[:0]
	for i, token := range merged {
		if i > 0 && token == merged[i-1] {
			continue
		}
		out = append(out, token)
	}
	return strings.Join(out, " ")
}

// DOM returns a deep copy of node with every class attribute canonicalized.
// The input is not modified.
func DOM(node *models.DOMNode) *models.DOMNode {
	if node == nil {
		return nil
	}

	out := &models.DOMNode{
		Type: node.Type,
		Text: node.Text,
		Tag:  node.Tag,
	}
	if node.Attributes != nil {
		out.Attributes = make(map[string]string, len(node.Attributes))
		for name, value := range node.Attributes {
			if name == "class" {
				value = CanonicalClasses(value)
				if value == "" {
					continue
				}
			}
			out.Attributes[name] = value
		}
	}
	if node.Children != nil {
		out.Children = make([]*models.DOMNode, 0, len(node.Children))
		for _, child := range node.Children {
			out.Children = append(out.Children, DOM(child))
		}
	}
	return out
}

// Layout returns a copy of entries with className and text removed, leaving
// only geometry and computed style.
func Layout(entries []models.LayoutEntry) []models.LayoutEntry {
	if entries == nil {
		return nil
	}
	out := make([]models.LayoutEntry, len(entries))
	for i, entry := range entries {
		style := make(map[string]string, len(entry.Style))
		for k, v := range entry.Style {
			style[k] = v
		}
		out[i] = models.LayoutEntry{
			Path:  entry.Path,
			Tag:   entry.Tag,
			Rect:  entry.Rect,
			Style: style,
		}
	}
	return out
}

// Hash returns the SHA-256 hex digest of the JSON encoding of v. Struct
// fields encode in declaration order and map keys sorted, so equal values
// always hash equal.
func Hash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot for hashing: %w", err)
	}
	return HashBytes(data), nil
}

// HashBytes returns the SHA-256 hex digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashBundle normalizes the bundle's DOM and layout snapshots and fills
// all four hashes. Accessibility and pixel data are hashed as captured.
func HashBundle(bundle *models.SnapshotBundle) error {
	var err error
	if bundle.Hashes.DOM, err = Hash(DOM(bundle.DOM)); err != nil {
		return err
	}
	if bundle.Hashes.Layout, err = Hash(Layout(bundle.Layout)); err != nil {
		return err
	}
	if bundle.Hashes.Accessibility, err = Hash(bundle.Accessibility); err != nil {
		return err
	}
	bundle.Hashes.Pixel = HashBytes(bundle.Screenshot)
	return nil
}
