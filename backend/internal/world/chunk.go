package world

import (
	"math"

	portPhysics "x-rail/backend/internal/core/port/out/physics"
)

// Chunk один квадратный сегмент пола.
// Владеет своими визуальными объектами и статическим телом.
type Chunk struct {
	Index   int
	Z       float32 // Смещение вдоль оси движения: Index * -chunkSize
	PlaneID string
	GridID  string
	Body    portPhysics.BodyHandle
}

// ChunkOffset возвращает смещение чанка с индексом index вдоль оси движения
func ChunkOffset(index int, chunkSize float32) float32 {
	return float32(index) * -chunkSize
}

// IndexFor возвращает индекс чанка, в котором находится позиция z
func IndexFor(z, chunkSize float32) int {
	return int(math.Floor(float64(-z) / float64(chunkSize)))
}
