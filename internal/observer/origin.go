package observer

import (
	"strconv"

	"golang.org/x/net/html"
)

// Attribute names written onto candidate elements. These are the UI
// surface's hooks for styling item state.
const (
	statusAttr = "data-scan-status"
	labelAttr  = "data-scan-label"
	scoreAttr  = "data-scan-score"
)

// nodeOrigin is the non-owning handle back to a candidate element. It
// never assumes the node stays attached: Alive goes false once the host
// detaches the subtree, and marking a dead origin is a no-op.
type nodeOrigin struct {
	node *html.Node
}

// Alive reports whether the node is still attached to a document.
func (n *nodeOrigin) Alive() bool {
	for p := n.node; p != nil; p = p.Parent {
		if p.Type == html.DocumentNode {
			return true
		}
	}
	return false
}

// MarkStatus records the per-item status attribute.
func (n *nodeOrigin) MarkStatus(status string) {
	setAttr(n.node, statusAttr, status)
}

// MarkOutcome records the final classification attributes.
func (n *nodeOrigin) MarkOutcome(status, label string, score float64) {
	setAttr(n.node, statusAttr, status)
	setAttr(n.node, labelAttr, label)
	setAttr(n.node, scoreAttr, strconv.FormatFloat(score, 'f', 3, 64))
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
