package codegen

// nodeID indexes a node of a nodeList. Removed nodes keep their slot so
// ids stay stable.
type nodeID int32

const (
	headNode nodeID = 0
	tailNode nodeID = 1
)

type node struct {
	e          Expr
	prev, next nodeID
	removed    bool
}

// nodeList is the ordered item list of one block: a doubly linked list
// over an arena, bounded by head and tail sentinels
type nodeList struct {
	nodes []node
}

func newNodeList() *nodeList {
	return &nodeList{nodes: []node{
		{prev: headNode, next: tailNode},
		{prev: headNode, next: tailNode},
	}}
}

func (l *nodeList) get(id nodeID) Expr {
	return l.nodes[id].e
}

func (l *nodeList) prev(id nodeID) nodeID {
	return l.nodes[id].prev
}

func (l *nodeList) next(id nodeID) nodeID {
	return l.nodes[id].next
}

// last returns the final real node, or headNode when the list is empty
func (l *nodeList) last() nodeID {
	return l.nodes[tailNode].prev
}

func (l *nodeList) insertBefore(at nodeID, e Expr) nodeID {
	id := nodeID(len(l.nodes))
	p := l.nodes[at].prev
	l.nodes = append(l.nodes, node{e: e, prev: p, next: at})
	l.nodes[p].next = id
	l.nodes[at].prev = id
	return id
}

func (l *nodeList) insertAfter(at nodeID, e Expr) nodeID {
	return l.insertBefore(l.nodes[at].next, e)
}

func (l *nodeList) remove(id nodeID) {
	if id == headNode || id == tailNode {
		panic("codegen: removing a list sentinel")
	}
	n := &l.nodes[id]
	l.nodes[n.prev].next = n.next
	l.nodes[n.next].prev = n.prev
	n.removed = true
	n.e = nil
}

func (l *nodeList) replace(id nodeID, e Expr) {
	l.nodes[id].e = e
}

// each calls fn for every node from first to last
func (l *nodeList) each(fn func(id nodeID, e Expr)) {
	for id := l.nodes[headNode].next; id != tailNode; id = l.nodes[id].next {
		fn(id, l.nodes[id].e)
	}
}

// len counts live nodes
func (l *nodeList) len() int {
	n := 0
	for id := l.nodes[headNode].next; id != tailNode; id = l.nodes[id].next {
		n++
	}
	return n
}
