package ledger

import (
	"fmt"
	"iter"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// node is an AVL tree node. Each node exclusively owns its two subtrees.
type node struct {
	key    float64
	ref    domain.TradeRef
	height int
	left   *node
	right  *node
}

// Index is a height-balanced binary search tree of trade handles keyed by timestamp.
// Equal keys are routed right, so in-order traversal keeps their insertion order.
type Index struct {
	root  *node
	count int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Insert adds ref under key in O(log n).
func (ix *Index) Insert(key float64, ref domain.TradeRef) {
	ix.root = insertNode(ix.root, key, ref)
	ix.count++
}

// Len returns the number of indexed handles.
func (ix *Index) Len() int {
	return ix.count
}

// Height returns the height of the tree; an empty tree has height 0.
func (ix *Index) Height() int {
	return height(ix.root)
}

// InOrder yields handles by ascending timestamp.
func (ix *Index) InOrder() iter.Seq[domain.TradeRef] {
	return func(yield func(domain.TradeRef) bool) {
		var stack []*node
		current := ix.root
		for current != nil || len(stack) > 0 {
			for current != nil {
				stack = append(stack, current)
				current = current.left
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(top.ref) {
				return
			}
			current = top.right
		}
	}
}

// Validate walks the whole tree and checks stored heights, the balance bound
// and key ordering.
func (ix *Index) Validate() error {
	prev := -1.0
	first := true
	var walk func(n *node) (int, error)
	walk = func(n *node) (int, error) {
		if n == nil {
			return 0, nil
		}
		lh, err := walk(n.left)
		if err != nil {
			return 0, err
		}
		if !first && n.key < prev {
			return 0, fmt.Errorf("key %v follows %v in order: %w", n.key, prev, ports.ErrBalanceViolation)
		}
		prev, first = n.key, false
		rh, err := walk(n.right)
		if err != nil {
			return 0, err
		}
		if lh-rh > 1 || rh-lh > 1 {
			return 0, fmt.Errorf("node %v has balance %d: %w", n.key, lh-rh, ports.ErrBalanceViolation)
		}
		h := 1 + max(lh, rh)
		if h != n.height {
			return 0, fmt.Errorf("node %v stores height %d, actual %d: %w", n.key, n.height, h, ports.ErrBalanceViolation)
		}
		return h, nil
	}
	_, err := walk(ix.root)
	return err
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func balance(n *node) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func updateHeight(n *node) {
	n.height = 1 + max(height(n.left), height(n.right))
}

// rotateRight lifts y.left above y and returns the new subtree root.
func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	updateHeight(y)
	updateHeight(x)
	return x
}

// rotateLeft lifts x.right above x and returns the new subtree root.
func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	updateHeight(x)
	updateHeight(y)
	return y
}

func insertNode(n *node, key float64, ref domain.TradeRef) *node {
	if n == nil {
		return &node{key: key, ref: ref, height: 1}
	}
	if key < n.key {
		n.left = insertNode(n.left, key, ref)
	} else {
		n.right = insertNode(n.right, key, ref)
	}
	updateHeight(n)

	// The child's own balance tells which grandchild received the insert,
	// which stays correct when keys are equal.
	bf := balance(n)
	switch {
	case bf > 1 && balance(n.left) >= 0:
		return rotateRight(n)
	case bf > 1:
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case bf < -1 && balance(n.right) <= 0:
		return rotateLeft(n)
	case bf < -1:
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}
