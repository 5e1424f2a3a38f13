package scene

// Scope classifies a payload for the denormalized world/layer references.
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeLayer
	ScopeWorld
)

// Scoper is implemented by payloads that act as a world or layer.
type Scoper interface {
	Scope() Scope
}

// Container is implemented by payloads that only group other nodes.
type Container interface {
	IsContainer() bool
}

// ParentListener is notified when the node, or one of its ancestors, is
// moved to a different parent.
type ParentListener interface {
	ParentChanged(t *Tree, h Handle)
}

// Starter is implemented by payloads that need a one-time startup step.
type Starter interface {
	Startup() error
}

// IsContainer reports whether payload is a grouping-only node.
func IsContainer(payload any) bool {
	c, ok := payload.(Container)
	return ok && c.IsContainer()
}

func scopeOf(payload any) Scope {
	if s, ok := payload.(Scoper); ok {
		return s.Scope()
	}
	return ScopeNone
}
