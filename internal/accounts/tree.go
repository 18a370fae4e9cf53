package accounts

import "sort"

// Node is one account inside a resolved tree.
type Node struct {
	Account  Account
	Children []*Node
}

// Tree is the account forest for one tenant with parent and child indexes
// built once per request instead of recursive per-node queries.
type Tree struct {
	nodes map[int64]*Node
	roots []*Node
}

// BuildTree assembles the forest from a flat account list. Accounts pointing
// at a parent outside the list are treated as roots; a parent chain that
// loops back on itself yields ErrTreeCycle.
func BuildTree(accts []Account) (*Tree, error) {
	nodes := make(map[int64]*Node, len(accts))
	for _, a := range accts {
		nodes[a.ID] = &Node{Account: a}
	}
	t := &Tree{nodes: nodes}
	for _, a := range accts {
		node := nodes[a.ID]
		if a.ParentID == nil {
			t.roots = append(t.roots, node)
			continue
		}
		parent, ok := nodes[*a.ParentID]
		if !ok {
			t.roots = append(t.roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	sortNodes(t.roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}
	if err := t.checkAcyclic(); err != nil {
		return nil, err
	}
	return t, nil
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Account.Code < nodes[j].Account.Code
	})
}

func (t *Tree) checkAcyclic() error {
	reached := make(map[int64]bool, len(t.nodes))
	var visit func(n *Node) error
	visit = func(n *Node) error {
		if reached[n.Account.ID] {
			return ErrTreeCycle
		}
		reached[n.Account.ID] = true
		for _, c := range n.Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range t.roots {
		if err := visit(root); err != nil {
			return err
		}
	}
	// A node never reached from a root sits on a parent cycle.
	if len(reached) != len(t.nodes) {
		return ErrTreeCycle
	}
	return nil
}

// Roots returns the top-level accounts sorted by code.
func (t *Tree) Roots() []*Node {
	return t.roots
}

// Node returns the node for an account id, or nil.
func (t *Tree) Node(id int64) *Node {
	return t.nodes[id]
}

// Leaves returns all accounts without children, sorted by code.
func (t *Tree) Leaves() []Account {
	var out []Account
	for _, n := range t.nodes {
		if len(n.Children) == 0 {
			out = append(out, n.Account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Walk visits node and every descendant depth-first.
func (t *Tree) Walk(id int64, fn func(Account)) {
	n := t.nodes[id]
	if n == nil {
		return
	}
	var visit func(n *Node)
	visit = func(n *Node) {
		fn(n.Account)
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(n)
}
