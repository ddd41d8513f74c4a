// Package scene holds the in-memory scene graph driven by the visualizer.
// Model loading happens upstream; this package only deals with named nodes,
// primitive meshes, and materials.
package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	// ErrNodeExists indicates a node with the same name is already present.
	ErrNodeExists = errors.New("node already exists")
	// ErrNodeNotFound indicates a referenced node is absent from the scene.
	ErrNodeNotFound = errors.New("node not found")
)

// MeshKind identifies the primitive a node renders.
type MeshKind int

const (
	MeshNone MeshKind = iota
	MeshBox
	MeshCylinder
	MeshCone
)

func (k MeshKind) String() string {
	switch k {
	case MeshBox:
		return "box"
	case MeshCylinder:
		return "cylinder"
	case MeshCone:
		return "cone"
	default:
		return "none"
	}
}

// Mesh describes primitive geometry in the node's local frame, centered on
// the node origin. Box uses Size; cylinder and cone use Radius/Height.
// A cone's apex points down (-Y), matching a hopper-bottomed tank.
type Mesh struct {
	Kind   MeshKind
	Size   Vec3
	Radius float64
	Height float64
}

// LocalBounds returns the mesh's bounding box in the owning node's frame.
func (m *Mesh) LocalBounds() Box3 {
	if m == nil {
		return EmptyBox()
	}
	switch m.Kind {
	case MeshBox:
		h := m.Size.Scale(0.5)
		return Box3{Min: Vec3{X: -h.X, Y: -h.Y, Z: -h.Z}, Max: h}
	case MeshCylinder, MeshCone:
		return Box3{
			Min: Vec3{X: -m.Radius, Y: -m.Height / 2, Z: -m.Radius},
			Max: Vec3{X: m.Radius, Y: m.Height / 2, Z: m.Radius},
		}
	default:
		return EmptyBox()
	}
}

// Material is the renderable surface state the engines mutate. Nodes loaded
// from a manifest may share one Material until a node needs independent
// coloring, at which point it is cloned exactly once (see Node.OwnMaterial).
type Material struct {
	Color             colorful.Color
	Emissive          colorful.Color
	EmissiveIntensity float64
	TextureOffset     float64
}

// Clone returns an independent copy of the material.
func (m *Material) Clone() *Material {
	if m == nil {
		return &Material{}
	}
	out := *m
	return &out
}

// ClearEmissive resets the emissive overlay to none.
func (m *Material) ClearEmissive() {
	m.Emissive = colorful.Color{}
	m.EmissiveIntensity = 0
}

// Node is one named object in the scene graph. Position, Rotation, and
// Scale are local to the parent. The graph owns its nodes; index structures
// hold non-owning references.
type Node struct {
	Name     string
	Position Vec3
	Rotation Vec3 // Euler angles, radians
	Scale    Vec3
	Visible  bool

	Mesh     *Mesh
	material *Material
	cloned   bool

	parent   *Node
	children []*Node
}

// NewNode constructs a visible node with identity scale.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Scale:    One(),
		Visible:  true,
		material: &Material{Color: colorful.Color{R: 0.6, G: 0.6, B: 0.6}},
	}
}

// Parent returns the node's parent, or nil for roots.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's children in insertion order.
func (n *Node) Children() []*Node { return n.children }

// Material returns the node's current material for reading. Mutating the
// result without going through OwnMaterial risks recoloring unrelated
// geometry sharing the same material.
func (n *Node) Material() *Material { return n.material }

// SetMaterial replaces the node's material, typically during load when
// several nodes share one source material.
func (n *Node) SetMaterial(m *Material) {
	n.material = m
	n.cloned = false
}

// OwnMaterial returns a material exclusive to this node, cloning the shared
// source material on first call. Subsequent calls return the same clone.
func (n *Node) OwnMaterial() *Material {
	if !n.cloned {
		n.material = n.material.Clone()
		n.cloned = true
	}
	return n.material
}

// WorldPosition accumulates local positions up the parent chain. Rotations
// and scales of ancestors are intentionally not applied: tank animation
// works in local frames and only needs translated origins.
func (n *Node) WorldPosition() Vec3 {
	pos := n.Position
	for p := n.parent; p != nil; p = p.parent {
		pos = pos.Add(p.Position)
	}
	return pos
}

// LocalBounds returns the node's own mesh bounds, or an empty box when the
// node carries no mesh.
func (n *Node) LocalBounds() Box3 {
	return n.Mesh.LocalBounds()
}

// WorldBounds approximates the subtree's bounds in world space. Only
// translation is accumulated; this is the coarse fallback used when a tank
// has no mesh children to measure.
func (n *Node) WorldBounds() Box3 {
	box := n.LocalBounds().Translate(n.WorldPosition())
	for _, c := range n.children {
		box = box.Union(c.WorldBounds())
	}
	return box
}

// RotateY spins the node around its local Y axis, wrapping to keep the
// angle bounded.
func (n *Node) RotateY(delta float64) {
	n.Rotation.Y = math.Mod(n.Rotation.Y+delta, 2*math.Pi)
}

// Scene is the ordered collection of nodes produced by the loader. Node
// order is traversal order: parents before children, siblings in insertion
// order. That order is load-bearing: it is how array-valued components are
// correlated with array-valued payload readings.
type Scene struct {
	nodes  []*Node
	byName map[string]*Node
}

// NewScene constructs an empty scene.
func NewScene() *Scene {
	return &Scene{byName: make(map[string]*Node)}
}

// AddNode attaches a node under the named parent ("" for root). It returns
// ErrNodeExists for duplicate names and ErrNodeNotFound for a missing
// parent.
func (s *Scene) AddNode(parentName string, n *Node) error {
	if n == nil || n.Name == "" {
		return fmt.Errorf("scene: node must have a name")
	}
	if _, exists := s.byName[n.Name]; exists {
		return fmt.Errorf("scene: add %q: %w", n.Name, ErrNodeExists)
	}
	if parentName != "" {
		parent, ok := s.byName[parentName]
		if !ok {
			return fmt.Errorf("scene: add %q under %q: %w", n.Name, parentName, ErrNodeNotFound)
		}
		n.parent = parent
		parent.children = append(parent.children, n)
	}
	s.nodes = append(s.nodes, n)
	s.byName[n.Name] = n
	return nil
}

// Node returns the named node, or nil when absent.
func (s *Scene) Node(name string) *Node {
	return s.byName[name]
}

// Walk visits every node in traversal order.
func (s *Scene) Walk(fn func(*Node)) {
	for _, n := range s.nodes {
		fn(n)
	}
}

// Len returns the number of nodes in the scene.
func (s *Scene) Len() int { return len(s.nodes) }
