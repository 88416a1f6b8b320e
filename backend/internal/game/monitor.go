package game

import (
	"sort"
	"sync"
	"time"
)

// SystemMetrics метрики одной системы игрового цикла
type SystemMetrics struct {
	Name            string
	Last            time.Duration
	Average         time.Duration // Экспоненциальное среднее
	Max             time.Duration
	TotalExecutions uint64
	Errors          uint64
	SlowRuns        uint64 // Запуски дольше порога
}

// PerformanceMonitor собирает время выполнения систем
type PerformanceMonitor struct {
	mu            sync.RWMutex
	systems       map[string]*SystemMetrics
	slowThreshold time.Duration
}

// NewPerformanceMonitor создает монитор; запуск дольше slowThreshold считается медленным
func NewPerformanceMonitor(slowThreshold time.Duration) *PerformanceMonitor {
	return &PerformanceMonitor{
		systems:       make(map[string]*SystemMetrics),
		slowThreshold: slowThreshold,
	}
}

// ema экспоненциальное среднее с весом 1/10 для нового значения
func ema(avg, sample time.Duration) time.Duration {
	if avg == 0 {
		return sample
	}
	return (avg*9 + sample) / 10
}

// Register заводит метрики системы. Повторная регистрация сбрасывает их.
func (pm *PerformanceMonitor) Register(name string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.systems[name] = &SystemMetrics{Name: name}
}

// Observe учитывает очередной запуск и сообщает, был ли он медленным
func (pm *PerformanceMonitor) Observe(name string, d time.Duration) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	m, ok := pm.systems[name]
	if !ok {
		return false
	}

	m.Last = d
	m.Average = ema(m.Average, d)
	m.Max = max(m.Max, d)
	m.TotalExecutions++

	slow := pm.slowThreshold > 0 && d > pm.slowThreshold
	if slow {
		m.SlowRuns++
	}
	return slow
}

// Fail учитывает ошибку или панику системы
func (pm *PerformanceMonitor) Fail(name string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.systems[name]; ok {
		m.Errors++
	}
}

// SystemMetrics возвращает копию метрик системы
func (pm *PerformanceMonitor) SystemMetrics(name string) (SystemMetrics, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	m, ok := pm.systems[name]
	if !ok {
		return SystemMetrics{}, false
	}
	return *m, true
}

// All возвращает копии метрик всех систем, отсортированные по имени
func (pm *PerformanceMonitor) All() []SystemMetrics {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make([]SystemMetrics, 0, len(pm.systems))
	for _, m := range pm.systems {
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Stats возвращает метрики в виде, пригодном для JSON
func (pm *PerformanceMonitor) Stats() map[string]interface{} {
	stats := make(map[string]interface{})
	for _, m := range pm.All() {
		stats[m.Name] = map[string]interface{}{
			"last":       m.Last.String(),
			"average":    m.Average.String(),
			"max":        m.Max.String(),
			"executions": m.TotalExecutions,
			"errors":     m.Errors,
			"slow_runs":  m.SlowRuns,
		}
	}
	return stats
}
