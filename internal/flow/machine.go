package flow

// Frame is a suspended parent: the node whose branch is being built and
// the branch that was receiving children when the parent was started.
type Frame struct {
	Node   *NodeBuilder
	Branch *BranchBuilder
}

// Stack holds suspended frames.
type Stack struct {
	frames []Frame
}

// Push suspends f.
func (s *Stack) Push(f Frame) { s.frames = append(s.frames, f) }

// Pop resumes the most recently suspended frame.
func (s *Stack) Pop() (Frame, error) {
	if len(s.frames) == 0 {
		return Frame{}, &InvariantError{Op: "pop", Err: ErrStackUnderflow}
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, nil
}

// Len returns the number of suspended frames.
func (s *Stack) Len() int { return len(s.frames) }

// Machine drives the construction of a node tree. It holds at most one
// node under construction and the stack of parents suspended while their
// branches are built. A Machine is owned by one traversal.
type Machine struct {
	current *NodeBuilder
	branch  *BranchBuilder
	stack   Stack
	nodes   []*FlowNode
}

// NewMachine returns an empty machine.
func NewMachine() *Machine {
	return &Machine{}
}

// Current returns the node under construction, or nil.
func (m *Machine) Current() *NodeBuilder { return m.current }

// Depth returns the number of suspended parents.
func (m *Machine) Depth() int { return m.stack.Len() }

// Balanced reports whether no node is under construction and no parent is
// suspended.
func (m *Machine) Balanced() bool { return m.current == nil && m.stack.Len() == 0 }

// Nodes returns the finished top-level nodes.
func (m *Machine) Nodes() []*FlowNode { return m.nodes }

func (m *Machine) fail(op string, kind NodeKind, err error) error {
	return &InvariantError{Op: op, Kind: kind, Depth: m.stack.Len(), Err: err}
}

// StartNode makes a new node of the given kind current.
func (m *Machine) StartNode(kind NodeKind) (*NodeBuilder, error) {
	if m.current != nil {
		return nil, m.fail("start node", kind, ErrNodeActive)
	}
	m.current = NewNode(kind)
	return m.current, nil
}

// EndNode finishes the current node. With no suspended parent it joins the
// top-level list; otherwise it becomes the next child of the branch being
// built.
func (m *Machine) EndNode() (*FlowNode, error) {
	if m.current == nil {
		return nil, m.fail("end node", "", ErrNoActiveNode)
	}
	n, err := m.current.Build()
	if err != nil {
		return nil, err
	}
	m.current = nil
	if m.stack.Len() == 0 {
		m.nodes = append(m.nodes, n)
		return n, nil
	}
	if err := m.branch.Add(n); err != nil {
		return nil, err
	}
	return n, nil
}

// StartBranch suspends the current node and returns a fresh branch that
// receives the nodes finished until EndBranch.
func (m *Machine) StartBranch(label string, kind BranchKind, rep Repeatable) (*BranchBuilder, error) {
	if m.current == nil {
		return nil, m.fail("start branch "+label, "", ErrNoActiveNode)
	}
	m.stack.Push(Frame{Node: m.current, Branch: m.branch})
	m.current = nil
	m.branch = NewBranch(label, kind, rep)
	return m.branch, nil
}

// EndBranch attaches the branch being built to its suspended parent and
// makes the parent current again.
func (m *Machine) EndBranch() (*Branch, error) {
	if m.stack.Len() == 0 {
		return nil, m.fail("end branch", "", ErrStackUnderflow)
	}
	if m.current != nil {
		return nil, m.fail("end branch", m.current.Kind(), ErrNodeActive)
	}
	br, err := m.branch.Build()
	if err != nil {
		return nil, err
	}
	f, err := m.stack.Pop()
	if err != nil {
		return nil, err
	}
	f.Node.AddBranch(br)
	m.current = f.Node
	m.branch = f.Branch
	return br, nil
}
