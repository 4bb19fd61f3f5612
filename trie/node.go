package trie

// node is the morphing-shape contract every trie node implements. A
// mutation that needs to change a node's shape (leaf<->one-child,
// one-child<->small, small<->dense) returns a replacement node; the
// caller (parent, or the Trie itself for the root) is responsible for
// reseating its own link to the returned value, mirroring the source's
// "delete this; new OtherVariant(...)" contract without unsafe reuse.
type node interface {
	value() any
	setValue(v any)
	child(digit byte) node
	// setChild installs child at digit, morphing shape if needed, and
	// returns the node that should replace this one in its parent.
	setChild(digit byte, child node, maxDigit byte) node
	// rmChild removes the child at digit and returns the (possibly
	// morphed) replacement node plus the removed child, for the caller
	// to recurse into when deleting the dead chain below it.
	rmChild(digit byte) (node, node)
	isLeaf() bool
	numChildren() int
	// eachChild visits children in ascending digit order.
	eachChild(fn func(digit byte, c node))
}

// leafNode has zero children.
type leafNode struct {
	v any
}

func (n *leafNode) value() any       { return n.v }
func (n *leafNode) setValue(v any)   { n.v = v }
func (n *leafNode) child(byte) node  { return nil }
func (n *leafNode) isLeaf() bool     { return true }
func (n *leafNode) numChildren() int { return 0 }
func (n *leafNode) eachChild(func(byte, node)) {}

func (n *leafNode) setChild(digit byte, c node, _ byte) node {
	return &oneNode{v: n.v, digit: digit, kid: c}
}

func (n *leafNode) rmChild(byte) (node, node) {
	return n, nil
}

// oneNode has exactly one child.
type oneNode struct {
	v     any
	digit byte
	kid   node
}

func (n *oneNode) value() any       { return n.v }
func (n *oneNode) setValue(v any)   { n.v = v }
func (n *oneNode) isLeaf() bool     { return false }
func (n *oneNode) numChildren() int { return 1 }

func (n *oneNode) child(digit byte) node {
	if digit == n.digit {
		return n.kid
	}
	return nil
}

func (n *oneNode) eachChild(fn func(byte, node)) {
	fn(n.digit, n.kid)
}

func (n *oneNode) setChild(digit byte, c node, _ byte) node {
	if digit == n.digit {
		n.kid = c
		return n
	}
	// second distinct child: morph one-child -> small.
	sm := &smallNode{v: n.v}
	sm.insert(n.digit, n.kid)
	sm.insert(digit, c)
	return sm
}

func (n *oneNode) rmChild(digit byte) (node, node) {
	if digit != n.digit {
		return n, nil
	}
	removed := n.kid
	return &leafNode{v: n.v}, removed
}

// smallNode holds 2-4 children, labels kept sorted ascending.
type smallNode struct {
	v        any
	digits   []byte
	children []node
}

func (n *smallNode) value() any       { return n.v }
func (n *smallNode) setValue(v any)   { n.v = v }
func (n *smallNode) isLeaf() bool     { return false }
func (n *smallNode) numChildren() int { return len(n.digits) }

func (n *smallNode) child(digit byte) node {
	for i, d := range n.digits {
		if d == digit {
			return n.children[i]
		}
	}
	return nil
}

func (n *smallNode) eachChild(fn func(byte, node)) {
	for i, d := range n.digits {
		fn(d, n.children[i])
	}
}

// insert adds a new, not-yet-present digit in sorted position.
func (n *smallNode) insert(digit byte, c node) {
	i := 0
	for i < len(n.digits) && n.digits[i] < digit {
		i++
	}
	n.digits = append(n.digits, 0)
	n.children = append(n.children, nil)
	copy(n.digits[i+1:], n.digits[i:])
	copy(n.children[i+1:], n.children[i:])
	n.digits[i] = digit
	n.children[i] = c
}

func (n *smallNode) setChild(digit byte, c node, maxDigit byte) node {
	for i, d := range n.digits {
		if d == digit {
			n.children[i] = c
			return n
		}
	}
	if len(n.digits) < 4 {
		n.insert(digit, c)
		return n
	}
	// fifth distinct child: morph small -> dense.
	dn := newDenseNode(n.v, maxDigit)
	for i, d := range n.digits {
		dn.setChild(d, n.children[i], maxDigit)
	}
	dn.setChild(digit, c, maxDigit)
	return dn
}

func (n *smallNode) rmChild(digit byte) (node, node) {
	for i, d := range n.digits {
		if d != digit {
			continue
		}
		removed := n.children[i]
		n.digits = append(n.digits[:i], n.digits[i+1:]...)
		n.children = append(n.children[:i], n.children[i+1:]...)
		if len(n.digits) == 1 {
			return &oneNode{v: n.v, digit: n.digits[0], kid: n.children[0]}, removed
		}
		return n, removed
	}
	return n, nil
}

// denseNode direct-indexes children by digit over an array of size
// maxDigit+1; used once a node has 5 or more children.
type denseNode struct {
	v        any
	children []node
	count    int
}

func newDenseNode(v any, maxDigit byte) *denseNode {
	return &denseNode{v: v, children: make([]node, int(maxDigit)+1)}
}

func (n *denseNode) value() any       { return n.v }
func (n *denseNode) setValue(v any)   { n.v = v }
func (n *denseNode) isLeaf() bool     { return false }
func (n *denseNode) numChildren() int { return n.count }

func (n *denseNode) child(digit byte) node {
	if int(digit) >= len(n.children) {
		return nil
	}
	return n.children[digit]
}

func (n *denseNode) eachChild(fn func(byte, node)) {
	for d, c := range n.children {
		if c != nil {
			fn(byte(d), c)
		}
	}
}

func (n *denseNode) setChild(digit byte, c node, _ byte) node {
	if n.children[digit] == nil {
		n.count++
	}
	n.children[digit] = c
	return n
}

func (n *denseNode) rmChild(digit byte) (node, node) {
	removed := n.children[digit]
	if removed == nil {
		return n, nil
	}
	n.children[digit] = nil
	n.count--
	if n.count != 4 {
		return n, removed
	}
	// dropped to exactly 4: morph dense -> small, ascending digit order.
	sm := &smallNode{v: n.v}
	for d, c := range n.children {
		if c != nil {
			sm.insert(byte(d), c)
		}
	}
	return sm, removed
}
