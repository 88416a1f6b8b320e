package world

import (
	"log"
	"sort"

	"x-rail/backend/internal/config"
)

// ChunkBuilder создает и освобождает ресурсы чанков
type ChunkBuilder interface {
	NewChunk(index int) *Chunk
	DisposeChunk(chunk *Chunk)
}

// ChunkStreamer держит непрерывное окно чанков вокруг игрока.
// Окно сдвигается только при пересечении границы чанка, поэтому работа
// пропорциональна размеру окна, а не длине пройденного пути.
type ChunkStreamer struct {
	builder   ChunkBuilder
	chunkSize float32
	visible   int
	behind    int
	logger    *log.Logger

	chunks  []*Chunk // Отсортированы по Index
	front   int
	started bool

	spawned  uint64
	disposed uint64
}

// NewChunkStreamer создает стример чанков
func NewChunkStreamer(cfg config.WorldConfig, builder ChunkBuilder, logger *log.Logger) *ChunkStreamer {
	if logger == nil {
		logger = log.Default()
	}

	return &ChunkStreamer{
		builder:   builder,
		chunkSize: cfg.ChunkSize,
		visible:   cfg.ChunksVisible,
		behind:    cfg.ChunkBufferBehind,
		logger:    logger,
	}
}

// Start заполняет окно для стартовой позиции игрока
func (s *ChunkStreamer) Start(playerZ float32) {
	current := IndexFor(playerZ, s.chunkSize)
	s.fill(current)
	s.front = current
	s.started = true

	s.logger.Printf("[ChunkStreamer] Стартовое окно: индексы %d..%d (%d чанков)",
		current-s.behind, current+s.visible-1, len(s.chunks))
}

// Update сдвигает окно, если игрок пересек границу чанка.
// Возвращает true, если набор чанков изменился.
func (s *ChunkStreamer) Update(playerZ float32) bool {
	if !s.started {
		s.Start(playerZ)
		return true
	}

	current := IndexFor(playerZ, s.chunkSize)
	if current <= s.front {
		return false
	}

	s.fill(current)
	s.front = current
	return true
}

// fill создает недостающие чанки окна current и удаляет отставшие
func (s *ChunkStreamer) fill(current int) {
	threshold := current - s.behind
	target := current + s.visible - 1

	for index := threshold; index <= target; index++ {
		s.spawn(index)
	}

	// Обход с конца, так как удаление сдвигает срез
	for i := len(s.chunks) - 1; i >= 0; i-- {
		chunk := s.chunks[i]
		if chunk.Index >= threshold {
			continue
		}
		s.builder.DisposeChunk(chunk)
		s.chunks = append(s.chunks[:i], s.chunks[i+1:]...)
		s.disposed++
	}
}

// spawn создает чанк index, если его еще нет
func (s *ChunkStreamer) spawn(index int) {
	pos := sort.Search(len(s.chunks), func(i int) bool { return s.chunks[i].Index >= index })
	if pos < len(s.chunks) && s.chunks[pos].Index == index {
		return
	}

	chunk := s.builder.NewChunk(index)
	s.chunks = append(s.chunks, nil)
	copy(s.chunks[pos+1:], s.chunks[pos:])
	s.chunks[pos] = chunk
	s.spawned++
}

// Chunk возвращает активный чанк по индексу
func (s *ChunkStreamer) Chunk(index int) (*Chunk, bool) {
	pos := sort.Search(len(s.chunks), func(i int) bool { return s.chunks[i].Index >= index })
	if pos < len(s.chunks) && s.chunks[pos].Index == index {
		return s.chunks[pos], true
	}
	return nil, false
}

// Indices возвращает индексы активных чанков по возрастанию
func (s *ChunkStreamer) Indices() []int {
	result := make([]int, len(s.chunks))
	for i, chunk := range s.chunks {
		result[i] = chunk.Index
	}
	return result
}

func (s *ChunkStreamer) Len() int {
	return len(s.chunks)
}

// Front возвращает индекс текущего чанка, для которого построено окно
func (s *ChunkStreamer) Front() int {
	return s.front
}

// Close освобождает все чанки
func (s *ChunkStreamer) Close() {
	for i := len(s.chunks) - 1; i >= 0; i-- {
		s.builder.DisposeChunk(s.chunks[i])
		s.disposed++
	}
	s.chunks = nil
	s.started = false
}

// Stats возвращает счетчики стримера
func (s *ChunkStreamer) Stats() map[string]interface{} {
	return map[string]interface{}{
		"active":   len(s.chunks),
		"front":    s.front,
		"spawned":  s.spawned,
		"disposed": s.disposed,
	}
}
