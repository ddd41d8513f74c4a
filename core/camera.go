package core

import "github.com/aquasight/plant-visualizer/scene"

// Camera holds the view transform. View controls are data-independent:
// they never read or mutate plant state.
type Camera struct {
	Position scene.Vec3
	Target   scene.Vec3

	home        scene.Vec3
	minDistance float64
	maxDistance float64
}

// NewCamera places the camera at its home position looking at the target.
func NewCamera(home, target scene.Vec3) *Camera {
	return &Camera{
		Position:    home,
		Target:      target,
		home:        home,
		minDistance: 2,
		maxDistance: 200,
	}
}

// ResetView restores the home position.
func (c *Camera) ResetView() {
	c.Position = c.home
}

// ZoomIn moves the camera toward the target, clamped to minDistance.
func (c *Camera) ZoomIn() {
	c.zoom(0.9)
}

// ZoomOut moves the camera away from the target, clamped to maxDistance.
func (c *Camera) ZoomOut() {
	c.zoom(1.0 / 0.9)
}

func (c *Camera) zoom(factor float64) {
	offset := c.Position.Sub(c.Target)
	dist := offset.Norm()
	if dist == 0 {
		return
	}
	next := dist * factor
	if next < c.minDistance {
		next = c.minDistance
	} else if next > c.maxDistance {
		next = c.maxDistance
	}
	c.Position = c.Target.Add(offset.Scale(next / dist))
}
