package core

import (
	"math"

	"github.com/aquasight/plant-visualizer/scene"
)

// fallbackInset shrinks the world-bounds fallback box so an approximated
// fill mesh stays inside the tank walls.
const fallbackInset = 0.1

// TankGeometry is the immutable fill-mesh metadata derived once per tank at
// load time. All values are in the tank node's local frame so the per-frame
// animation code never touches world transforms.
type TankGeometry struct {
	Height float64
	Radius float64
	Center scene.Vec3
	// Approximate is set when no mesh geometry was found and the values were
	// recovered from world-space bounds instead.
	Approximate bool
}

// Bottom returns the local Y of the tank floor.
func (g TankGeometry) Bottom() float64 {
	return g.Center.Y - g.Height/2
}

// DeriveTankGeometry measures a tank node by unioning the local-space
// bounding boxes of all mesh descendants, each translated into the tank's
// local frame. When the subtree carries no mesh at all, it falls back to
// the node's world-space bounds minus a fixed inset.
func DeriveTankGeometry(tank *scene.Node) TankGeometry {
	box := meshBoundsInFrame(tank, scene.Vec3{})
	if box.IsEmpty() {
		world := tank.WorldBounds().Inset(fallbackInset)
		box = world.Translate(tank.WorldPosition().Scale(-1))
		if box.IsEmpty() || box.Size().Norm() == 0 {
			// Nothing measurable anywhere; a unit placeholder keeps the fill
			// engine well-defined.
			box = scene.Box3{
				Min: scene.Vec3{X: -0.5, Y: -0.5, Z: -0.5},
				Max: scene.Vec3{X: 0.5, Y: 0.5, Z: 0.5},
			}
		}
		size := box.Size()
		return TankGeometry{
			Height:      size.Y,
			Radius:      math.Min(size.X, size.Z) / 2,
			Center:      box.Center(),
			Approximate: true,
		}
	}

	size := box.Size()
	return TankGeometry{
		Height: size.Y,
		Radius: math.Min(size.X, size.Z) / 2,
		Center: box.Center(),
	}
}

// meshBoundsInFrame unions mesh bounds across the subtree rooted at n,
// expressed in the frame offset away from the original tank origin.
func meshBoundsInFrame(n *scene.Node, offset scene.Vec3) scene.Box3 {
	box := scene.EmptyBox()
	if n.Mesh != nil {
		box = n.Mesh.LocalBounds().Translate(offset)
	}
	for _, c := range n.Children() {
		box = box.Union(meshBoundsInFrame(c, offset.Add(c.Position)))
	}
	return box
}

// ConeFillParams converts a cone fill fraction into the water-cone mesh
// parameters. The cone fills apex-up from the hopper tip, so both the
// surface radius and the water height grow linearly with the fraction.
// centerY is relative to the hopper tip (the cone section's lowest point).
//
// Pure function: the cone section regenerates geometry every frame and the
// math has to be checkable without a live scene.
func ConeFillParams(fillFraction, maxRadius, maxHeight float64) (radius, height, centerY float64) {
	f := fillFraction
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	radius = maxRadius * f
	height = maxHeight * f
	centerY = height / 2
	return radius, height, centerY
}
