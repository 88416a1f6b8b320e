package game

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-rail/backend/internal/input"
)

// PlayerRig группа игрока: камера и контроллеры едут вместе с ней по оси -Z
type PlayerRig struct {
	position mgl32.Vec3
	speed    float32
}

// NewPlayerRig создает риг в точке (0, 0, startZ)
func NewPlayerRig(startZ, speed float32) *PlayerRig {
	return &PlayerRig{
		position: mgl32.Vec3{0, 0, startZ},
		speed:    speed,
	}
}

// Advance сдвигает риг вперед на speed*dt
func (r *PlayerRig) Advance(dt float32) {
	if dt <= 0 {
		return
	}
	r.position[2] -= r.speed * dt
}

// Position возвращает мировую позицию рига
func (r *PlayerRig) Position() mgl32.Vec3 {
	return r.position
}

// Z координата рига на оси движения
func (r *PlayerRig) Z() float32 {
	return r.position.Z()
}

// WorldPose переводит позу устройства из системы рига в мировую
func (r *PlayerRig) WorldPose(local input.DevicePose) input.DevicePose {
	local.Position = local.Position.Add(r.position)
	return local
}
