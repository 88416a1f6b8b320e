package telemetry

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Типы событий телеметрии
const (
	EventLaunch  = "launch"
	EventDespawn = "despawn"
	EventIgnored = "release_ignored"
)

// Event запись о снаряде
type Event struct {
	Timestamp    int64      `json:"timestamp"` // Время в миллисекундах
	Kind         string     `json:"kind"`
	ProjectileID string     `json:"projectile_id,omitempty"`
	Device       string     `json:"device,omitempty"`
	Power        float64    `json:"power,omitempty"`
	Radius       float32    `json:"radius,omitempty"`
	Position     mgl32.Vec3 `json:"position"`
	Velocity     mgl32.Vec3 `json:"velocity"`
	Reason       string     `json:"reason,omitempty"` // Причина удаления
}

// TelemetryManager управляет сбором и выводом телеметрии
type TelemetryManager struct {
	enabled    bool
	data       []Event
	mutex      sync.RWMutex
	maxEntries int
	logger     *log.Logger

	// Счетчики для статистики
	counters      map[string]int
	lastPrint     time.Time
	printInterval time.Duration
}

// NewTelemetryManager создает новый менеджер телеметрии
func NewTelemetryManager(logger *log.Logger) *TelemetryManager {
	if logger == nil {
		logger = log.Default()
	}

	return &TelemetryManager{
		enabled:       true,
		data:          make([]Event, 0),
		maxEntries:    200, // Храним последние 200 записей
		logger:        logger,
		counters:      make(map[string]int),
		lastPrint:     time.Now(),
		printInterval: 10 * time.Second,
	}
}

// Record записывает событие
func (tm *TelemetryManager) Record(event Event) {
	if tm == nil {
		return
	}

	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	tm.data = append(tm.data, event)

	// Ограничиваем размер буфера
	if len(tm.data) > tm.maxEntries {
		tm.data = tm.data[len(tm.data)-tm.maxEntries:]
	}

	key := event.Kind
	if event.Reason != "" {
		key += "_" + event.Reason
	}
	tm.counters[key]++
}

// Count возвращает значение счетчика
func (tm *TelemetryManager) Count(key string) int {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return tm.counters[key]
}

// Events возвращает копию накопленных событий
func (tm *TelemetryManager) Events() []Event {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	result := make([]Event, len(tm.data))
	copy(result, tm.data)
	return result
}

// PrintSummary выводит сводку не чаще printInterval
func (tm *TelemetryManager) PrintSummary(now time.Time) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled || now.Sub(tm.lastPrint) < tm.printInterval {
		return
	}
	tm.lastPrint = now

	if len(tm.counters) == 0 {
		return
	}

	keys := make([]string, 0, len(tm.counters))
	for key := range tm.counters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tm.logger.Printf("[Telemetry] Записей в буфере: %d", len(tm.data))
	for _, key := range keys {
		tm.logger.Printf("[Telemetry] %s: %d", key, tm.counters[key])
	}
}

// GetTelemetryJSON возвращает телеметрию в JSON формате
func (tm *TelemetryManager) GetTelemetryJSON() ([]byte, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	return json.MarshalIndent(struct {
		Counters map[string]int `json:"counters"`
		Events   []Event        `json:"events"`
	}{tm.counters, tm.data}, "", "  ")
}

// SetEnabled включает/выключает телеметрию
func (tm *TelemetryManager) SetEnabled(enabled bool) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.enabled = enabled
	tm.logger.Printf("[Telemetry] Телеметрия %s", map[bool]string{true: "включена", false: "выключена"}[enabled])
}

// Clear очищает все данные телеметрии
func (tm *TelemetryManager) Clear() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.data = make([]Event, 0)
	tm.counters = make(map[string]int)
}
