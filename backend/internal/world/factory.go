package world

import (
	"fmt"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-rail/backend/internal/config"
	portPhysics "x-rail/backend/internal/core/port/out/physics"
)

// Factory создает и уничтожает пары "визуал + тело" для чанков пола
type Factory struct {
	scene   Scene
	physics portPhysics.PhysicsPort
	world   config.WorldConfig
	phys    config.PhysicsConfig
	logger  *log.Logger
}

// NewFactory создает новый экземпляр Factory
func NewFactory(scene Scene, physics portPhysics.PhysicsPort, cfg config.Config, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default()
	}

	return &Factory{
		scene:   scene,
		physics: physics,
		world:   cfg.World,
		phys:    cfg.Physics,
		logger:  logger,
	}
}

// NewChunk создает плоскость, сетку и статическую коробку для чанка index
func (f *Factory) NewChunk(index int) *Chunk {
	size := f.world.ChunkSize
	z := ChunkOffset(index, size)
	owner := fmt.Sprintf("chunk:%d", index)

	chunk := &Chunk{
		Index:   index,
		Z:       z,
		PlaneID: owner + ":plane",
		GridID:  owner + ":grid",
	}

	// Плоскость лежит горизонтально: поворот на -90° вокруг X
	f.scene.AddObject(Object{
		ID:       chunk.PlaneID,
		Kind:     PLANE,
		Owner:    owner,
		Position: mgl32.Vec3{0, f.world.FloorY, z},
		Rotation: mgl32.QuatRotate(-math.Pi/2, mgl32.Vec3{1, 0, 0}),
		Scale:    1,
		Visible:  true,
		Width:    size,
		Depth:    size,
		Color:    f.world.BackgroundColor,
	})

	// Сетка чуть выше плоскости, чтобы не мерцала
	f.scene.AddObject(Object{
		ID:        chunk.GridID,
		Kind:      GRID,
		Owner:     owner,
		Position:  mgl32.Vec3{0, f.world.FloorY + 0.01, z},
		Rotation:  mgl32.QuatIdent(),
		Scale:     1,
		Visible:   true,
		Width:     size,
		Depth:     size,
		Divisions: f.world.GridDivisions,
		Color:     f.world.GridColor1,
		Color2:    f.world.GridColor2,
	})

	shape := portPhysics.Box(mgl32.Vec3{size / 2, f.world.FloorThickness, size / 2}).
		WithMaterial(f.phys.Margin, f.phys.Friction, f.phys.Restitution)
	chunk.Body = f.physics.CreateStaticBody(shape, mgl32.Vec3{0, f.world.FloorY, z})

	return chunk
}

// DisposeChunk освобождает визуальные объекты и тело чанка
func (f *Factory) DisposeChunk(chunk *Chunk) {
	if chunk == nil {
		return
	}

	f.scene.RemoveObject(chunk.PlaneID)
	f.scene.RemoveObject(chunk.GridID)
	if chunk.Body.Valid() {
		f.physics.RemoveBody(chunk.Body)
	}
}
