package game

import (
	"fmt"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-rail/backend/internal/config"
	portPhysics "x-rail/backend/internal/core/port/out/physics"
	"x-rail/backend/internal/input"
	"x-rail/backend/internal/telemetry"
	"x-rail/backend/internal/world"
)

// LaunchParams параметры запуска, выведенные из мощности
type LaunchParams struct {
	Power    float64
	Radius   float32
	Force    float32
	Velocity mgl32.Vec3
}

// ProjectileLauncher создает снаряды с размером и скоростью, зависящими от заряда
type ProjectileLauncher struct {
	physics     portPhysics.PhysicsPort
	scene       world.Scene
	projectiles *ProjectileSet
	telemetry   *telemetry.TelemetryManager
	logger      *log.Logger

	gameplay   config.GameplayConfig
	projectile config.ProjectileConfig
	phys       config.PhysicsConfig

	nextID uint64
}

// NewProjectileLauncher создает пускатель снарядов
func NewProjectileLauncher(
	physics portPhysics.PhysicsPort,
	scene world.Scene,
	projectiles *ProjectileSet,
	cfg config.Config,
	tm *telemetry.TelemetryManager,
	logger *log.Logger,
) *ProjectileLauncher {
	if logger == nil {
		logger = log.Default()
	}

	return &ProjectileLauncher{
		physics:     physics,
		scene:       scene,
		projectiles: projectiles,
		telemetry:   tm,
		logger:      logger,
		gameplay:    cfg.Gameplay,
		projectile:  cfg.Projectile,
		phys:        cfg.Physics,
	}
}

// Params вычисляет радиус, силу и скорость для направления forward и мощности power.
// Мощность вне [0, 1] приводится к границам.
func (l *ProjectileLauncher) Params(forward mgl32.Vec3, power float64) LaunchParams {
	power = clampPower(power)
	p := float32(power)

	radius := l.projectile.Radius * (0.5 + 0.5*p)
	force := l.gameplay.MinForce + (l.gameplay.MaxForce-l.gameplay.MinForce)*p

	dir := mgl32.Vec3{0, 0, -1}
	if forward.Len() > 1e-6 {
		dir = forward.Normalize()
	}

	// Риг сам движется вперед, скорость снаряда учитывает это смещение
	velocity := dir.Mul(force)
	velocity[2] -= l.gameplay.Speed

	return LaunchParams{Power: power, Radius: radius, Force: force, Velocity: velocity}
}

// Launch создает снаряд в точке origin
func (l *ProjectileLauncher) Launch(origin, forward mgl32.Vec3, power float64) *Projectile {
	params := l.Params(forward, power)

	l.nextID++
	id := fmt.Sprintf("projectile:%d", l.nextID)

	shape := portPhysics.Sphere(params.Radius).
		WithMaterial(l.phys.Margin, l.phys.Friction, l.phys.Restitution)
	body := l.physics.CreateDynamicBody(shape, origin, l.projectile.Mass)
	l.physics.SetLinearVelocity(body, params.Velocity)

	l.scene.AddObject(world.Object{
		ID:       id,
		Kind:     world.SPHERE,
		Owner:    id,
		Position: origin,
		Rotation: mgl32.QuatIdent(),
		Scale:    1,
		Visible:  true,
		Radius:   params.Radius,
		Color:    l.projectile.Color,
	})

	projectile := &Projectile{
		ID:     id,
		Visual: id,
		Body:   body,
		Power:  params.Power,
		Radius: params.Radius,
	}
	l.projectiles.Add(projectile)

	l.telemetry.Record(telemetry.Event{
		Kind:         telemetry.EventLaunch,
		ProjectileID: id,
		Power:        params.Power,
		Radius:       params.Radius,
		Position:     origin,
		Velocity:     params.Velocity,
	})

	return projectile
}

// LaunchFromPose запускает снаряд из позы устройства
func (l *ProjectileLauncher) LaunchFromPose(pose input.DevicePose, power float64) *Projectile {
	return l.Launch(pose.Position, pose.Forward(), power)
}

func clampPower(power float64) float64 {
	if math.IsNaN(power) || power < 0 {
		return 0
	}
	if power > 1 {
		return 1
	}
	return power
}
