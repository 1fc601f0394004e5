package forge

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the editor viewpoint resource. Yaw/Pitch are in degrees.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32

	FovY float32 // degrees
	Near float32
	Far  float32

	Speed       float32
	Sensitivity float32
}

type CameraModule struct{}

func (m CameraModule) Install(app *App) {
	app.AddResources(&Camera{
		Position:    mgl32.Vec3{0, 2, 6},
		FovY:        60,
		Near:        0.1,
		Far:         1000,
		Speed:       5,
		Sensitivity: 0.2,
	})
	app.UseSystem(System(cameraControlSystem).InStage(StageUpdate))
}

func (c *Camera) Forward() mgl32.Vec3 {
	yaw := mgl32.DegToRad(c.Yaw)
	pitch := mgl32.DegToRad(c.Pitch)
	return mgl32.Vec3{
		math32.Sin(yaw) * math32.Cos(pitch),
		math32.Sin(pitch),
		-math32.Cos(yaw) * math32.Cos(pitch),
	}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}

func (c *Camera) ProjMatrix(width, height int) mgl32.Mat4 {
	aspect := float32(width) / float32(max(height, 1))
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// ScreenRay unprojects a screen coordinate (pixels, origin top-left) to a
// world-space ray through the camera.
func (c *Camera) ScreenRay(x, y float64, width, height int) Ray {
	if width <= 0 || height <= 0 {
		return Ray{Origin: c.Position, Dir: c.Forward()}
	}
	ndcX := 2*float32(x)/float32(width) - 1
	ndcY := 1 - 2*float32(y)/float32(height)

	inv := c.ProjMatrix(width, height).Mul4(c.ViewMatrix()).Inv()
	near := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, -1, 1})
	far := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})

	nearP := near.Vec3().Mul(1 / near.W())
	farP := far.Vec3().Mul(1 / far.W())

	return Ray{Origin: nearP, Dir: farP.Sub(nearP).Normalize()}
}

// cameraControlSystem implements WASD flight plus mouse look while the
// cursor is captured (Tab toggles capture).
func cameraControlSystem(input *Input, cam *Camera, t *Time) {
	if input.JustPressed[KeyTab] {
		input.MouseCaptured = !input.MouseCaptured
	}

	var move mgl32.Vec3
	if input.Pressed[KeyW] {
		move[2] += 1
	}
	if input.Pressed[KeyS] {
		move[2] -= 1
	}
	if input.Pressed[KeyA] {
		move[0] -= 1
	}
	if input.Pressed[KeyD] {
		move[0] += 1
	}
	if input.Pressed[KeySpace] {
		move[1] += 1
	}
	if input.Pressed[KeyControl] {
		move[1] -= 1
	}

	if input.MouseCaptured {
		cam.Yaw += float32(input.MouseDeltaX) * cam.Sensitivity
		cam.Pitch -= float32(input.MouseDeltaY) * cam.Sensitivity
		cam.Pitch = mgl32.Clamp(cam.Pitch, -89, 89)
	}

	if move.Len() > 0 {
		dt := float32(t.Dt.Seconds())
		dir := c3sum(
			cam.Forward().Mul(move.Z()),
			cam.Right().Mul(move.X()),
			mgl32.Vec3{0, move.Y(), 0},
		)
		cam.Position = cam.Position.Add(dir.Normalize().Mul(cam.Speed * dt))
	}
}

func c3sum(a, b, c mgl32.Vec3) mgl32.Vec3 {
	return a.Add(b).Add(c)
}
