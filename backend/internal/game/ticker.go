package game

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTickerRunning возвращается при повторном запуске цикла
var ErrTickerRunning = errors.New("game ticker already running")

// Frame данные одного кадра игрового цикла
type Frame struct {
	Delta time.Duration // Время с предыдущего кадра
	Now   time.Time     // Настенные часы кадра
	Tick  uint64
}

// Seconds возвращает Delta в секундах
func (f Frame) Seconds() float32 {
	return float32(f.Delta.Seconds())
}

// TickSystem интерфейс для всех игровых систем
type TickSystem interface {
	Update(frame Frame) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// GameTicker основной менеджер игрового цикла.
// Кадры выполняются либо собственной горутиной (Start), либо вызовом Step.
// Одновременно использовать оба способа нельзя.
type GameTicker struct {
	targetFPS    int
	tickDuration time.Duration
	slowTick     time.Duration // Порог медленного кадра
	criticalTick time.Duration // Порог кадра, сорвавшего расписание

	systems   []TickSystem
	systemsMu sync.RWMutex

	monitor *PerformanceMonitor
	paused  atomic.Bool

	stateMu   sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	tickCount uint64
	startTime time.Time
	lastTick  time.Time
	avgTick   time.Duration
	maxTick   time.Duration
	lateTicks uint64 // Кадры, пришедшие с опозданием больше чем на кадр

	logger *log.Logger
}

// NewGameTicker создает новый игровой тикер
func NewGameTicker(targetFPS int, logger *log.Logger) *GameTicker {
	if targetFPS <= 0 {
		targetFPS = 60
	}
	if logger == nil {
		logger = log.Default()
	}

	tickDuration := time.Second / time.Duration(targetFPS)

	return &GameTicker{
		targetFPS:    targetFPS,
		tickDuration: tickDuration,
		slowTick:     tickDuration / 2,
		criticalTick: tickDuration * 2,
		monitor:      NewPerformanceMonitor(tickDuration / 4),
		logger:       logger,
	}
}

// TickDuration возвращает целевую длительность кадра
func (gt *GameTicker) TickDuration() time.Duration {
	return gt.tickDuration
}

// Monitor возвращает монитор производительности систем
func (gt *GameTicker) Monitor() *PerformanceMonitor {
	return gt.monitor
}

// RegisterSystem добавляет систему в игровой цикл.
// Системы с равным приоритетом выполняются в порядке регистрации.
func (gt *GameTicker) RegisterSystem(system TickSystem) {
	gt.systemsMu.Lock()
	gt.systems = append(gt.systems, system)
	sort.SliceStable(gt.systems, func(i, j int) bool {
		return gt.systems[i].GetPriority() < gt.systems[j].GetPriority()
	})
	gt.systemsMu.Unlock()

	gt.monitor.Register(system.GetName())
	gt.logger.Printf("[GameTicker] Зарегистрирована система %s (приоритет %d)", system.GetName(), system.GetPriority())
}

// SystemNames возвращает имена систем в порядке выполнения
func (gt *GameTicker) SystemNames() []string {
	gt.systemsMu.RLock()
	defer gt.systemsMu.RUnlock()

	names := make([]string, 0, len(gt.systems))
	for _, system := range gt.systems {
		names = append(names, system.GetName())
	}
	return names
}

// Start запускает игровой цикл на отдельной горутине
func (gt *GameTicker) Start(ctx context.Context) error {
	gt.stateMu.Lock()
	defer gt.stateMu.Unlock()

	if gt.running {
		return ErrTickerRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	gt.running = true
	gt.cancel = cancel
	gt.done = make(chan struct{})
	gt.startTime = time.Now()
	gt.lastTick = gt.startTime

	gt.logger.Printf("[GameTicker] Запуск: %d FPS, кадр %v", gt.targetFPS, gt.tickDuration)

	go gt.loop(loopCtx, gt.done)
	return nil
}

// Stop останавливает цикл и ждет завершения текущего кадра
func (gt *GameTicker) Stop() {
	gt.stateMu.Lock()
	if !gt.running {
		gt.stateMu.Unlock()
		return
	}
	gt.running = false
	cancel, done, ticks := gt.cancel, gt.done, gt.tickCount
	gt.stateMu.Unlock()

	cancel()
	<-done

	gt.logger.Printf("[GameTicker] Остановлен после %d кадров", ticks)
}

// Pause приостанавливает или возобновляет цикл. Время паузы не попадает в Delta.
func (gt *GameTicker) Pause(pause bool) {
	if gt.paused.Swap(pause) == pause {
		return
	}
	if pause {
		gt.logger.Printf("[GameTicker] Пауза")
	} else {
		gt.logger.Printf("[GameTicker] Продолжение")
	}
}

func (gt *GameTicker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTicker(gt.tickDuration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-timer.C:
			gt.stateMu.Lock()
			delta := now.Sub(gt.lastTick)
			gt.lastTick = now
			gt.stateMu.Unlock()

			if gt.paused.Load() {
				continue
			}

			if delta > gt.criticalTick {
				gt.logger.Printf("[GameTicker] ПРЕДУПРЕЖДЕНИЕ: кадр опоздал, прошло %v вместо %v", delta, gt.tickDuration)
				gt.stateMu.Lock()
				gt.lateTicks++
				gt.stateMu.Unlock()
			}

			gt.Step(delta, now)
		}
	}
}

// Step синхронно выполняет один кадр: все системы в порядке приоритета
func (gt *GameTicker) Step(delta time.Duration, now time.Time) Frame {
	started := time.Now()

	gt.stateMu.Lock()
	gt.tickCount++
	frame := Frame{Delta: delta, Now: now, Tick: gt.tickCount}
	gt.stateMu.Unlock()

	gt.systemsMu.RLock()
	systems := append([]TickSystem(nil), gt.systems...)
	gt.systemsMu.RUnlock()

	for _, system := range systems {
		gt.run(system, frame)
	}

	elapsed := time.Since(started)

	gt.stateMu.Lock()
	gt.avgTick = ema(gt.avgTick, elapsed)
	gt.maxTick = max(gt.maxTick, elapsed)
	gt.stateMu.Unlock()

	switch {
	case elapsed > gt.criticalTick:
		gt.logger.Printf("[GameTicker] КРИТИЧЕСКОЕ ПРЕДУПРЕЖДЕНИЕ: кадр %d занял %v (цель %v)", frame.Tick, elapsed, gt.tickDuration)
	case elapsed > gt.slowTick:
		gt.logger.Printf("[GameTicker] Медленный кадр %d: %v", frame.Tick, elapsed)
	}

	return frame
}

// run выполняет одну систему. Паника системы не прерывает кадр.
func (gt *GameTicker) run(system TickSystem, frame Frame) {
	name := system.GetName()
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			gt.logger.Printf("[GameTicker] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", name, r)
			gt.monitor.Fail(name)
		}
	}()

	err := system.Update(frame)

	if elapsed := time.Since(started); gt.monitor.Observe(name, elapsed) {
		gt.logger.Printf("[GameTicker] Система %s выполнялась %v", name, elapsed)
	}
	if err != nil {
		gt.logger.Printf("[GameTicker] Ошибка в системе %s: %v", name, err)
		gt.monitor.Fail(name)
	}
}

// GetTickCount возвращает количество выполненных кадров
func (gt *GameTicker) GetTickCount() uint64 {
	gt.stateMu.Lock()
	defer gt.stateMu.Unlock()
	return gt.tickCount
}

// GetStats возвращает статистику игрового цикла
func (gt *GameTicker) GetStats() map[string]interface{} {
	systemsCount := len(gt.SystemNames())

	gt.stateMu.Lock()
	defer gt.stateMu.Unlock()

	var uptime time.Duration
	var fps float64
	if gt.running {
		uptime = time.Since(gt.startTime)
		if uptime > 0 {
			fps = float64(gt.tickCount) / uptime.Seconds()
		}
	}

	return map[string]interface{}{
		"target_fps":        gt.targetFPS,
		"actual_fps":        fps,
		"tick_count":        gt.tickCount,
		"uptime_seconds":    uptime.Seconds(),
		"average_tick_time": gt.avgTick.String(),
		"max_tick_time":     gt.maxTick.String(),
		"late_ticks":        gt.lateTicks,
		"is_running":        gt.running,
		"is_paused":         gt.paused.Load(),
		"systems_count":     systemsCount,
		"systems":           gt.monitor.Stats(),
	}
}
