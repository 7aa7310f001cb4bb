package capture

import (
	"encoding/json"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"

	"github.com/ternarybob/pixelparity/internal/models"
)

// axTree indexes a full accessibility tree as returned by CDP.
type axTree struct {
	nodes []*accessibility.Node
	byID  map[accessibility.NodeID]*accessibility.Node
}

func newAXTree(nodes []*accessibility.Node) *axTree {
	t := &axTree{nodes: nodes, byID: make(map[accessibility.NodeID]*accessibility.Node, len(nodes))}
	for _, n := range nodes {
		t.byID[n.NodeID] = n
	}
	return t
}

// rootFor returns the node backed by the given DOM node, or the tree root
// (the node without a parent) when backend is zero or not found.
func (t *axTree) rootFor(backend cdp.BackendNodeID) *accessibility.Node {
	if backend != 0 {
		for _, n := range t.nodes {
			if n.BackendDOMNodeID == backend {
				return n
			}
		}
	}
	for _, n := range t.nodes {
		if n.ParentID == "" {
			return n
		}
	}
	return nil
}

// convert keeps the allowlisted semantic fields of root and its subtree.
// Ignored nodes stay in place with their role, "none" when CDP gives none,
// so wrapper structure differences between variants remain visible.
func (t *axTree) convert(root *accessibility.Node) *models.AXNode {
	if root == nil {
		return nil
	}
	out := semantic(root)
	out.Children = t.children(root)
	return out
}

func (t *axTree) children(n *accessibility.Node) []*models.AXNode {
	var out []*models.AXNode
	for _, id := range n.ChildIDs {
		child, ok := t.byID[id]
		if !ok {
			continue
		}
		out = append(out, t.convert(child))
	}
	return out
}

func semantic(n *accessibility.Node) *models.AXNode {
	out := &models.AXNode{
		Role:        stringValue(n.Role),
		Name:        stringValue(n.Name),
		Description: stringValue(n.Description),
		Value:       rawValue(n.Value),
	}
	if n.Ignored && out.Role == "" {
		out.Role = "none"
	}
	for _, p := range n.Properties {
		if p == nil {
			continue
		}
		switch string(p.Name) {
		case "checked":
			out.Checked = rawValue(p.Value)
		case "pressed":
			out.Pressed = rawValue(p.Value)
		case "selected":
			out.Selected = rawValue(p.Value)
		case "disabled":
			out.Disabled = rawValue(p.Value)
		case "expanded":
			out.Expanded = rawValue(p.Value)
		case "level":
			out.Level = rawValue(p.Value)
		}
	}
	return out
}

func rawValue(v *accessibility.Value) any {
	if v == nil || len(v.Value) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal([]byte(v.Value), &out); err != nil {
		return nil
	}
	return out
}

func stringValue(v *accessibility.Value) string {
	s, _ := rawValue(v).(string)
	return s
}
