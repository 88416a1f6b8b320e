package game

import (
	"log"

	"x-rail/backend/internal/config"
	portPhysics "x-rail/backend/internal/core/port/out/physics"
	"x-rail/backend/internal/telemetry"
	"x-rail/backend/internal/world"
)

// Причины удаления снаряда
const (
	DespawnFloor   = "floor"
	DespawnBehind  = "behind"
	DespawnFar     = "far"
	DespawnMissing = "missing"
	DespawnCleared = "cleared"
)

// LifecycleGC синхронизирует снаряды с физикой и удаляет вылетевшие за пределы
type LifecycleGC struct {
	physics     portPhysics.PhysicsPort
	scene       world.Scene
	projectiles *ProjectileSet
	telemetry   *telemetry.TelemetryManager
	logger      *log.Logger
	cfg         config.CleanupConfig

	removed int
}

// NewLifecycleGC создает сборщик снарядов
func NewLifecycleGC(
	physics portPhysics.PhysicsPort,
	scene world.Scene,
	projectiles *ProjectileSet,
	cfg config.CleanupConfig,
	tm *telemetry.TelemetryManager,
	logger *log.Logger,
) *LifecycleGC {
	if logger == nil {
		logger = log.Default()
	}

	return &LifecycleGC{
		physics:     physics,
		scene:       scene,
		projectiles: projectiles,
		telemetry:   tm,
		logger:      logger,
		cfg:         cfg,
	}
}

// Update переносит трансформацию тел на сферы сцены и удаляет снаряды вне границ.
// Вызывается после шага физики. Возвращает количество удаленных снарядов.
func (gc *LifecycleGC) Update(playerZ float32) int {
	behind := playerZ + gc.cfg.BehindDistance
	far := playerZ - gc.cfg.FarDistance

	removed := 0
	// С конца, чтобы удаление не сдвигало непросмотренные элементы
	for i := gc.projectiles.Len() - 1; i >= 0; i-- {
		p := gc.projectiles.At(i)

		pos, rot, ok := gc.physics.ReadTransform(p.Body)
		if !ok {
			gc.destroy(i, p, DespawnMissing)
			removed++
			continue
		}

		gc.scene.SetTransform(p.Visual, pos, rot)

		reason := ""
		switch {
		case pos.Y() < gc.cfg.FloorHeight:
			reason = DespawnFloor
		case pos.Z() > behind:
			reason = DespawnBehind
		case pos.Z() < far:
			reason = DespawnFar
		}
		if reason == "" {
			continue
		}

		p.lastPosition = pos
		gc.destroy(i, p, reason)
		removed++
	}

	gc.removed += removed
	return removed
}

// Clear удаляет все снаряды
func (gc *LifecycleGC) Clear() int {
	n := gc.projectiles.Len()
	for i := n - 1; i >= 0; i-- {
		gc.destroy(i, gc.projectiles.At(i), DespawnCleared)
	}
	gc.removed += n
	return n
}

// Removed возвращает общее количество удаленных снарядов
func (gc *LifecycleGC) Removed() int {
	return gc.removed
}

func (gc *LifecycleGC) destroy(i int, p *Projectile, reason string) {
	gc.scene.RemoveObject(p.Visual)
	gc.physics.RemoveBody(p.Body)
	gc.projectiles.removeAt(i)

	gc.telemetry.Record(telemetry.Event{
		Kind:         telemetry.EventDespawn,
		ProjectileID: p.ID,
		Power:        p.Power,
		Radius:       p.Radius,
		Position:     p.lastPosition,
		Reason:       reason,
	})
}
