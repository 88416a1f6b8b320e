package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"x-rail/backend/internal/config"
	portPhysics "x-rail/backend/internal/core/port/out/physics"
	"x-rail/backend/internal/input"
	"x-rail/backend/internal/telemetry"
	"x-rail/backend/internal/world"
)

// ErrQueueFull очередь ввода переполнена, событие отброшено
var ErrQueueFull = errors.New("input queue full")

const inputQueueSize = 256

// InputEventType тип события ввода
type InputEventType int

const (
	SelectStart InputEventType = iota
	SelectEnd
	PoseUpdate
)

func (t InputEventType) String() string {
	switch t {
	case SelectStart:
		return "select_start"
	case SelectEnd:
		return "select_end"
	case PoseUpdate:
		return "pose"
	default:
		return "unknown"
	}
}

// InputEvent жест или поза устройства, пришедшие из транспорта
type InputEvent struct {
	Type   InputEventType
	Device input.DeviceID
	Pose   input.DevicePose // Только для PoseUpdate, в системе координат рига
	At     time.Time        // Нулевое значение означает время кадра
}

// PhysicsWorld физический мир, которым владеет сессия
type PhysicsWorld interface {
	portPhysics.PhysicsPort
	Stats() map[string]interface{}
}

// Snapshot согласованное состояние сцены для отправки клиентам
type Snapshot struct {
	Tick    uint64
	Time    time.Time
	Rig     mgl32.Vec3
	Objects []world.Object
}

// Session связывает компоненты ядра в один игровой цикл.
// Все состояние ядра меняется только внутри кадра на горутине тикера;
// транспорт лишь ставит события в очередь и читает сцену.
type Session struct {
	cfg    config.Config
	logger *log.Logger

	scene       *world.Manager
	physics     PhysicsWorld
	streamer    *world.ChunkStreamer
	charge      *input.ChargeController
	devices     *input.DeviceRegistry
	palette     *input.RayPalette
	projectiles *ProjectileSet
	launcher    *ProjectileLauncher
	gc          *LifecycleGC
	rig         *PlayerRig
	telemetry   *telemetry.TelemetryManager
	ticker      *GameTicker

	events  chan InputEvent
	dropped atomic.Uint64

	statsMu   sync.RWMutex
	stats     map[string]interface{}
	lastFrame Frame
	rigPos    mgl32.Vec3
	objects   []world.Object // Копия сцены на конец последнего кадра
}

// NewSession собирает сессию. Физический мир должен быть инициализирован вызывающим.
func NewSession(
	cfg config.Config,
	scene *world.Manager,
	physics PhysicsWorld,
	tm *telemetry.TelemetryManager,
	logger *log.Logger,
) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	palette, err := input.NewRayPalette(cfg.Gameplay)
	if err != nil {
		return nil, fmt.Errorf("ray palette: %w", err)
	}

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		scene:       scene,
		physics:     physics,
		charge:      input.NewChargeController(cfg.Gameplay.MaxChargeTime()),
		devices:     input.NewDeviceRegistry(),
		palette:     palette,
		projectiles: NewProjectileSet(),
		rig:         NewPlayerRig(cfg.Camera.StartZ, cfg.Gameplay.Speed),
		telemetry:   tm,
		ticker:      NewGameTicker(cfg.Server.TargetFPS, logger),
		events:      make(chan InputEvent, inputQueueSize),
	}

	factory := world.NewFactory(scene, physics, cfg, logger)
	s.streamer = world.NewChunkStreamer(cfg.World, factory, logger)
	s.launcher = NewProjectileLauncher(physics, scene, s.projectiles, cfg, tm, logger)
	s.gc = NewLifecycleGC(physics, scene, s.projectiles, cfg.Cleanup, tm, logger)

	s.ticker.RegisterSystem(NewInputSystem(s))
	s.ticker.RegisterSystem(NewChargeFeedbackSystem(s.charge, s.palette, scene))
	s.ticker.RegisterSystem(NewRigSystem(s.rig, s.devices, scene))
	s.ticker.RegisterSystem(NewChunkSystem(s.streamer, s.rig, logger))
	s.ticker.RegisterSystem(NewPhysicsSystem(physics, cfg.Physics.Steps))
	s.ticker.RegisterSystem(NewLifecycleSystem(s.gc, s.rig, tm))
	s.ticker.RegisterSystem(NewStatsSystem(s))

	return s, nil
}

// Start строит начальное окно чанков вокруг рига
func (s *Session) Start() {
	s.streamer.Start(s.rig.Z())
	s.publishStats(Frame{Now: time.Now()})

	s.logger.Printf("[Session] Старт: риг z=%.1f, чанков %d", s.rig.Z(), s.streamer.Len())
}

// Tick выполняет один кадр синхронно
func (s *Session) Tick(dt time.Duration, now time.Time) Frame {
	return s.ticker.Step(dt, now)
}

// Run запускает кадры в реальном времени до отмены ctx
func (s *Session) Run(ctx context.Context) error {
	if err := s.ticker.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.ticker.Stop()
	return nil
}

// Close освобождает снаряды, чанки и лучи
func (s *Session) Close() {
	s.ticker.Stop()

	removed := s.gc.Clear()
	s.streamer.Close()
	for _, id := range s.devices.IDs() {
		s.scene.RemoveObject(RayID(id))
		s.devices.Forget(id)
	}
	s.publishStats(Frame{Tick: s.ticker.GetTickCount(), Now: time.Now()})

	s.logger.Printf("[Session] Закрыта: удалено снарядов %d", removed)
}

// Enqueue ставит событие ввода в очередь. Не блокирует.
func (s *Session) Enqueue(ev InputEvent) error {
	select {
	case s.events <- ev:
		return nil
	default:
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

// EnqueueSelectStart нажатие курка устройства
func (s *Session) EnqueueSelectStart(device input.DeviceID, at time.Time) error {
	return s.Enqueue(InputEvent{Type: SelectStart, Device: device, At: at})
}

// EnqueueSelectEnd отпускание курка устройства
func (s *Session) EnqueueSelectEnd(device input.DeviceID, at time.Time) error {
	return s.Enqueue(InputEvent{Type: SelectEnd, Device: device, At: at})
}

// EnqueuePose новая поза устройства в системе координат рига
func (s *Session) EnqueuePose(pose input.DevicePose) error {
	return s.Enqueue(InputEvent{Type: PoseUpdate, Device: pose.ID, Pose: pose})
}

func (s *Session) drainInput(frameNow time.Time) {
	for {
		select {
		case ev := <-s.events:
			now := ev.At
			if now.IsZero() {
				now = frameNow
			}
			s.handleInput(ev, now)
		default:
			return
		}
	}
}

func (s *Session) handleInput(ev InputEvent, now time.Time) {
	switch ev.Type {
	case SelectStart:
		s.ensureRay(ev.Device)
		s.charge.BeginCharge(ev.Device, now)

	case SelectEnd:
		power, ok := s.charge.EndCharge(ev.Device, now)
		if !ok {
			s.telemetry.Record(telemetry.Event{Kind: telemetry.EventIgnored, Device: string(ev.Device)})
			return
		}
		applyRay(s.scene, ev.Device, s.palette.Idle())

		local, known := s.devices.Pose(ev.Device)
		if !known {
			local = input.DevicePose{ID: ev.Device, Orientation: mgl32.QuatIdent()}
		}
		s.launcher.LaunchFromPose(s.rig.WorldPose(local), power)

	case PoseUpdate:
		s.devices.UpdatePose(ev.Pose)
		s.ensureRay(ev.Device)
		local, _ := s.devices.Pose(ev.Device)
		pose := s.rig.WorldPose(local)
		s.scene.SetTransform(RayID(ev.Device), pose.Position, pose.Orientation)
	}
}

// ensureRay создает луч устройства при первом обращении
func (s *Session) ensureRay(device input.DeviceID) {
	if _, exists := s.scene.GetObject(RayID(device)); exists {
		return
	}

	local, known := s.devices.Pose(device)
	if !known {
		// Устройство без позы держим в начале координат рига
		local = input.DevicePose{ID: device, Orientation: mgl32.QuatIdent()}
		s.devices.UpdatePose(local)
	}
	pose := s.rig.WorldPose(local)
	idle := s.palette.Idle()

	s.scene.AddObject(world.Object{
		ID:       RayID(device),
		Kind:     world.RAY,
		Owner:    string(device),
		Position: pose.Position,
		Rotation: pose.Orientation,
		Scale:    idle.Scale,
		Visible:  true,
		Length:   idle.Length,
		Color:    idle.Color,
	})
}

// publishStats фиксирует статистику и копию сцены на конец кадра
func (s *Session) publishStats(frame Frame) {
	objects := s.scene.GetAllObjects()
	stats := map[string]interface{}{
		"tick":          frame.Tick,
		"rig_z":         s.rig.Z(),
		"projectiles":   s.projectiles.Len(),
		"removed":       s.gc.Removed(),
		"charging":      s.charge.Len(),
		"devices":       s.devices.Len(),
		"input_dropped": s.dropped.Load(),
		"chunks":        s.streamer.Stats(),
		"physics":       s.physics.Stats(),
		"scene_objects": len(objects),
	}

	s.statsMu.Lock()
	s.stats = stats
	s.lastFrame = frame
	s.rigPos = s.rig.Position()
	s.objects = objects
	s.statsMu.Unlock()
}

// Stats возвращает статистику последнего кадра и тикера
func (s *Session) Stats() map[string]interface{} {
	s.statsMu.RLock()
	session := make(map[string]interface{}, len(s.stats))
	for k, v := range s.stats {
		session[k] = v
	}
	s.statsMu.RUnlock()

	return map[string]interface{}{
		"session": session,
		"ticker":  s.ticker.GetStats(),
	}
}

// Snapshot возвращает состояние сцены на конец последнего кадра.
// Кадр, который выполняется в момент вызова, в снимок не попадает.
func (s *Session) Snapshot() Snapshot {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	return Snapshot{
		Tick:    s.lastFrame.Tick,
		Time:    s.lastFrame.Now,
		Rig:     s.rigPos,
		Objects: append([]world.Object(nil), s.objects...),
	}
}

// Config возвращает действующую конфигурацию
func (s *Session) Config() config.Config {
	return s.cfg
}

// Ticker возвращает тикер сессии
func (s *Session) Ticker() *GameTicker {
	return s.ticker
}

// Projectiles возвращает отслеживаемые снаряды. Только для горутины кадра.
func (s *Session) Projectiles() []*Projectile {
	return s.projectiles.All()
}

// Streamer возвращает стример чанков. Только для горутины кадра.
func (s *Session) Streamer() *world.ChunkStreamer {
	return s.streamer
}

// Rig возвращает риг игрока. Только для горутины кадра.
func (s *Session) Rig() *PlayerRig {
	return s.rig
}
