// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package trie

// A NodeIterator enumerates the nodes of a trie together with their absolute
// key paths. It follows the usual iteration protocol: Next advances to the
// next node and reports whether one exists, Path and Node access the current
// position, and Error returns the first resolution failure, after which
// iteration stops.
type NodeIterator interface {
	Next() bool
	Path() Path
	Node() *Trie
	Error() error
}

type iteratorEntry struct {
	path Path
	node *Trie
}

// preOrderIterator visits every node before its children, left sub-trie
// first. Parents are always reported before any node below them.
type preOrderIterator struct {
	stack []iteratorEntry
	cur   iteratorEntry
	err   error
}

// NewPreOrderIterator creates an iterator visiting all nodes of the given
// trie in pre-order. An empty trie yields no nodes.
func NewPreOrderIterator(t *Trie) NodeIterator {
	it := &preOrderIterator{}
	if !t.isEmpty() {
		it.stack = append(it.stack, iteratorEntry{path: copyPath(t.path), node: t})
	}
	return it
}

func (it *preOrderIterator) Next() bool {
	if it.err != nil || len(it.stack) == 0 {
		it.cur = iteratorEntry{}
		return false
	}
	it.cur = it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]

	// right first so the left sub-trie is visited before it
	if err := it.push(it.cur, it.cur.node.right, 1); err != nil {
		it.err = err
		it.stack = nil
		return false
	}
	if err := it.push(it.cur, it.cur.node.left, 0); err != nil {
		it.err = err
		it.stack = nil
		return false
	}
	return true
}

func (it *preOrderIterator) push(parent iteratorEntry, ref *childRef, bit byte) error {
	if ref == nil {
		return nil
	}
	child, err := parent.node.child(ref)
	if err != nil {
		return err
	}
	it.stack = append(it.stack, iteratorEntry{
		path: concatPath(parent.path, bit, child.path),
		node: child,
	})
	return nil
}

func (it *preOrderIterator) Path() Path   { return it.cur.path }
func (it *preOrderIterator) Node() *Trie  { return it.cur.node }
func (it *preOrderIterator) Error() error { return it.err }

// inOrderIterator visits the left sub-trie, then the node, then the right
// sub-trie, yielding nodes in ascending key-path order.
type inOrderIterator struct {
	stack []iteratorEntry
	cur   iteratorEntry
	err   error
}

// NewInOrderIterator creates an iterator visiting all nodes of the given
// trie in ascending key-path order. An empty trie yields no nodes.
func NewInOrderIterator(t *Trie) NodeIterator {
	it := &inOrderIterator{}
	if !t.isEmpty() {
		it.descendLeft(iteratorEntry{path: copyPath(t.path), node: t})
	}
	return it
}

// descendLeft pushes the given node and its whole chain of left children.
func (it *inOrderIterator) descendLeft(entry iteratorEntry) {
	for {
		it.stack = append(it.stack, entry)
		ref := entry.node.left
		if ref == nil {
			return
		}
		child, err := entry.node.child(ref)
		if err != nil {
			it.err = err
			it.stack = nil
			return
		}
		entry = iteratorEntry{
			path: concatPath(entry.path, 0, child.path),
			node: child,
		}
	}
}

func (it *inOrderIterator) Next() bool {
	if it.err != nil || len(it.stack) == 0 {
		it.cur = iteratorEntry{}
		return false
	}
	it.cur = it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]

	if ref := it.cur.node.right; ref != nil {
		child, err := it.cur.node.child(ref)
		if err != nil {
			it.err = err
			it.stack = nil
			return false
		}
		it.descendLeft(iteratorEntry{
			path: concatPath(it.cur.path, 1, child.path),
			node: child,
		})
	}
	return it.err == nil
}

func (it *inOrderIterator) Path() Path   { return it.cur.path }
func (it *inOrderIterator) Node() *Trie  { return it.cur.node }
func (it *inOrderIterator) Error() error { return it.err }
