package game

import (
	"log"

	portPhysics "x-rail/backend/internal/core/port/out/physics"
	"x-rail/backend/internal/input"
	"x-rail/backend/internal/telemetry"
	"x-rail/backend/internal/world"
)

// Приоритеты систем кадра
const (
	PriorityInput          = 0
	PriorityChargeFeedback = 10
	PriorityRig            = 20
	PriorityChunks         = 30
	PriorityPhysics        = 40
	PriorityLifecycle      = 50
	PriorityStats          = 100
)

type baseSystem struct {
	name     string
	priority int
}

// GetName возвращает имя системы
func (b baseSystem) GetName() string {
	return b.name
}

// GetPriority возвращает приоритет системы
func (b baseSystem) GetPriority() int {
	return b.priority
}

// InputSystem применяет накопленные события ввода до остальных систем
type InputSystem struct {
	baseSystem
	session *Session
}

func NewInputSystem(session *Session) *InputSystem {
	return &InputSystem{
		baseSystem: baseSystem{name: "InputSystem", priority: PriorityInput},
		session:    session,
	}
}

// Update разбирает очередь событий
func (s *InputSystem) Update(frame Frame) error {
	s.session.drainInput(frame.Now)
	return nil
}

// ChargeFeedbackSystem растит и перекрашивает лучи заряжающих устройств
type ChargeFeedbackSystem struct {
	baseSystem
	charge  *input.ChargeController
	palette *input.RayPalette
	scene   world.Scene
}

// NewChargeFeedbackSystem создает систему обратной связи заряда
func NewChargeFeedbackSystem(charge *input.ChargeController, palette *input.RayPalette, scene world.Scene) *ChargeFeedbackSystem {
	return &ChargeFeedbackSystem{
		baseSystem: baseSystem{name: "ChargeFeedbackSystem", priority: PriorityChargeFeedback},
		charge:     charge,
		palette:    palette,
		scene:      scene,
	}
}

// Update обновляет луч каждого заряжающего устройства
func (s *ChargeFeedbackSystem) Update(frame Frame) error {
	for _, device := range s.charge.Devices() {
		power, ok := s.charge.CurrentPower(device, frame.Now)
		if !ok {
			continue
		}
		applyRay(s.scene, device, s.palette.Feedback(power))
	}
	return nil
}

// RigSystem двигает риг и переносит лучи вслед за устройствами
type RigSystem struct {
	baseSystem
	rig     *PlayerRig
	devices *input.DeviceRegistry
	scene   world.Scene
}

func NewRigSystem(rig *PlayerRig, devices *input.DeviceRegistry, scene world.Scene) *RigSystem {
	return &RigSystem{
		baseSystem: baseSystem{name: "RigSystem", priority: PriorityRig},
		rig:        rig,
		devices:    devices,
		scene:      scene,
	}
}

// Update сдвигает риг на speed*dt
func (s *RigSystem) Update(frame Frame) error {
	s.rig.Advance(frame.Seconds())

	for _, id := range s.devices.IDs() {
		local, _ := s.devices.Pose(id)
		pose := s.rig.WorldPose(local)
		s.scene.SetTransform(RayID(id), pose.Position, pose.Orientation)
	}
	return nil
}

// ChunkSystem поддерживает окно чанков вокруг рига
type ChunkSystem struct {
	baseSystem
	streamer *world.ChunkStreamer
	rig      *PlayerRig
	logger   *log.Logger
}

func NewChunkSystem(streamer *world.ChunkStreamer, rig *PlayerRig, logger *log.Logger) *ChunkSystem {
	return &ChunkSystem{
		baseSystem: baseSystem{name: "ChunkSystem", priority: PriorityChunks},
		streamer:   streamer,
		rig:        rig,
		logger:     logger,
	}
}

// Update сдвигает окно при пересечении границы чанка
func (s *ChunkSystem) Update(frame Frame) error {
	if s.streamer.Update(s.rig.Z()) && frame.Tick%600 == 0 {
		s.logger.Printf("[ChunkSystem] Окно чанков: %v", s.streamer.Indices())
	}
	return nil
}

// PhysicsSystem продвигает физический мир
type PhysicsSystem struct {
	baseSystem
	physics     portPhysics.PhysicsPort
	maxSubSteps int
}

func NewPhysicsSystem(physics portPhysics.PhysicsPort, maxSubSteps int) *PhysicsSystem {
	return &PhysicsSystem{
		baseSystem:  baseSystem{name: "PhysicsSystem", priority: PriorityPhysics},
		physics:     physics,
		maxSubSteps: maxSubSteps,
	}
}

// Update выполняет шаг симуляции с ограничением подшагов
func (s *PhysicsSystem) Update(frame Frame) error {
	s.physics.Step(frame.Seconds(), s.maxSubSteps)
	return nil
}

// LifecycleSystem синхронизирует и собирает снаряды после шага физики
type LifecycleSystem struct {
	baseSystem
	gc        *LifecycleGC
	rig       *PlayerRig
	telemetry *telemetry.TelemetryManager
}

func NewLifecycleSystem(gc *LifecycleGC, rig *PlayerRig, tm *telemetry.TelemetryManager) *LifecycleSystem {
	return &LifecycleSystem{
		baseSystem: baseSystem{name: "LifecycleSystem", priority: PriorityLifecycle},
		gc:         gc,
		rig:        rig,
		telemetry:  tm,
	}
}

// Update удаляет снаряды вне границ
func (s *LifecycleSystem) Update(frame Frame) error {
	s.gc.Update(s.rig.Z())
	if s.telemetry != nil {
		s.telemetry.PrintSummary(frame.Now)
	}
	return nil
}

// StatsSystem публикует статистику сессии для транспортных горутин
type StatsSystem struct {
	baseSystem
	session *Session
}

func NewStatsSystem(session *Session) *StatsSystem {
	return &StatsSystem{
		baseSystem: baseSystem{name: "StatsSystem", priority: PriorityStats},
		session:    session,
	}
}

// Update снимает статистику в конце кадра
func (s *StatsSystem) Update(frame Frame) error {
	s.session.publishStats(frame)
	return nil
}

// RayID идентификатор луча устройства в сцене
func RayID(device input.DeviceID) string {
	return "ray:" + string(device)
}

func applyRay(scene world.Scene, device input.DeviceID, ray input.Ray) {
	scene.UpdateObject(RayID(device), func(obj *world.Object) {
		obj.Scale = ray.Scale
		obj.Length = ray.Length
		obj.Color = ray.Color
	})
}
