package scene

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Summary describes what a manifest load produced. Mainly useful for
// logging from main().
type Summary struct {
	NodeNames []string
	Meshes    int
}

// internal JSON shapes – unexported so the wire format can evolve freely.
type manifestJSON struct {
	Nodes []nodeJSON `json:"nodes"`
}

type nodeJSON struct {
	Name     string    `json:"name"`
	Parent   string    `json:"parent"`
	Position *vec3JSON `json:"position"`
	Rotation *vec3JSON `json:"rotation"`
	Mesh     *meshJSON `json:"mesh"`
	Color    string    `json:"color"` // hex, e.g. "#5588aa"; optional
}

type meshJSON struct {
	Kind   string   `json:"kind"` // "box" | "cylinder" | "cone"
	Size   vec3JSON `json:"size"`
	Radius float64  `json:"radius"`
	Height float64  `json:"height"`
}

type vec3JSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v vec3JSON) vec() Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// LoadManifest reads a JSON scene manifest from r and builds the scene
// graph. Parents must appear before their children in the manifest; node
// order is preserved as the scene traversal order.
//
// It fails only on JSON / structural errors (missing names, unknown
// parents, duplicates). Unknown mesh kinds and unparseable colors fall back
// to defaults rather than failing the load.
func LoadManifest(r io.Reader) (*Scene, *Summary, error) {
	var payload manifestJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("scene: decode manifest: %w", err)
	}

	s := NewScene()
	summary := &Summary{NodeNames: make([]string, 0, len(payload.Nodes))}

	for _, jn := range payload.Nodes {
		if jn.Name == "" {
			return nil, nil, fmt.Errorf("scene: manifest node with empty name")
		}
		n := NewNode(jn.Name)
		if jn.Position != nil {
			n.Position = jn.Position.vec()
		}
		if jn.Rotation != nil {
			n.Rotation = jn.Rotation.vec()
		}
		if jn.Mesh != nil {
			n.Mesh = &Mesh{
				Kind:   meshKindFromString(jn.Mesh.Kind),
				Size:   jn.Mesh.Size.vec(),
				Radius: jn.Mesh.Radius,
				Height: jn.Mesh.Height,
			}
			summary.Meshes++
		}
		if jn.Color != "" {
			if c, err := colorful.Hex(jn.Color); err == nil {
				n.Material().Color = c
			}
		}

		if err := s.AddNode(jn.Parent, n); err != nil {
			return nil, nil, err
		}
		summary.NodeNames = append(summary.NodeNames, jn.Name)
	}

	return s, summary, nil
}

// meshKindFromString maps the JSON "kind" string to MeshKind constants.
//
// Kept tolerant: unknown or empty values default to a box, which still
// yields usable bounding geometry downstream.
func meshKindFromString(s string) MeshKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cylinder", "tube":
		return MeshCylinder
	case "cone", "hopper":
		return MeshCone
	case "box", "cube", "":
		return MeshBox
	default:
		return MeshBox
	}
}
