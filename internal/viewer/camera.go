package viewer

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/charview/internal/scene"
)

// OrbitCamera orbits a target point. Loaded models are normalized around
// the origin, so the default target is the origin.
type OrbitCamera struct {
	Target   mgl32.Vec3
	Distance float32
	Pitch    float32 // radians above the horizon
	Yaw      float32 // radians around +Y

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// AutoRotate spins the camera in radians per second while idle.
	AutoRotate float32

	DragSensitivity float32
	ZoomSensitivity float32

	FOV  float32 // vertical, radians
	Near float32
	Far  float32

	dragging bool
}

// NewOrbitCamera returns a camera framing a model of canonical size.
func NewOrbitCamera(canonicalSize float32) *OrbitCamera {
	if canonicalSize <= 0 {
		canonicalSize = 4
	}
	return &OrbitCamera{
		Distance:        canonicalSize * 2,
		Pitch:           0.35,
		MinDistance:     canonicalSize * 0.5,
		MaxDistance:     canonicalSize * 10,
		MinPitch:        -1.4,
		MaxPitch:        1.4,
		AutoRotate:      0.4,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		FOV:             mgl32.DegToRad(45),
		Near:            0.05,
		Far:             canonicalSize * 50,
	}
}

// Update advances auto rotation by dt seconds.
func (c *OrbitCamera) Update(dt float32) {
	if c.dragging {
		return
	}
	c.Yaw = math32.Mod(c.Yaw+c.AutoRotate*dt, 2*math32.Pi)
}

// Position returns the eye position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	sp, cp := math32.Sincos(c.Pitch)
	sy, cy := math32.Sincos(c.Yaw)
	return c.Target.Add(mgl32.Vec3{cp * sy, sp, cp * cy}.Mul(c.Distance))
}

// View returns the view matrix.
func (c *OrbitCamera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
}

// Projection returns a perspective projection for the given aspect ratio.
func (c *OrbitCamera) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(c.FOV, aspect, c.Near, c.Far)
}

// BeginDrag pauses auto rotation until EndDrag.
func (c *OrbitCamera) BeginDrag() { c.dragging = true }

// EndDrag resumes auto rotation.
func (c *OrbitCamera) EndDrag() { c.dragging = false }

// HandleDrag rotates by a mouse delta in pixels.
func (c *OrbitCamera) HandleDrag(dx, dy float32) {
	c.Yaw -= dx * c.DragSensitivity
	c.Pitch = mgl32.Clamp(c.Pitch+dy*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom changes distance by a wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance = mgl32.Clamp(c.Distance-delta*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)
}

// Frame points the camera at b and backs off far enough to see all of it.
func (c *OrbitCamera) Frame(b scene.Bounds) {
	if b.IsEmpty() {
		return
	}
	c.Target = b.Center()
	radius := b.Size().Len() / 2
	if radius <= 0 {
		return
	}
	d := radius / math32.Sin(c.FOV/2)
	c.Distance = mgl32.Clamp(d, c.MinDistance, c.MaxDistance)
}
