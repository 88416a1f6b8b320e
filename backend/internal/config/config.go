package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid возвращается, если значение конфигурации выходит за допустимые границы
var ErrInvalid = errors.New("invalid config")

// PhysicsConfig содержит глобальные настройки физического мира
type PhysicsConfig struct {
	Gravity       float32 `yaml:"gravity" json:"gravity"`                 // Ускорение свободного падения по Y
	Steps         int     `yaml:"steps" json:"steps"`                     // Максимум подшагов за один Step
	FixedTimeStep float32 `yaml:"fixed_time_step" json:"fixed_time_step"` // Длительность подшага, секунды
	Margin        float32 `yaml:"margin" json:"margin"`                   // Зазор коллизионных форм
	Friction      float32 `yaml:"friction" json:"friction"`
	Restitution   float32 `yaml:"restitution" json:"restitution"`
}

// GameplayConfig содержит настройки движения и заряда
type GameplayConfig struct {
	Speed            float32 `yaml:"speed" json:"speed"` // Скорость рига вдоль оси движения
	MinForce         float32 `yaml:"min_force" json:"min_force"`
	MaxForce         float32 `yaml:"max_force" json:"max_force"`
	MaxChargeTimeMs  int64   `yaml:"max_charge_time_ms" json:"max_charge_time_ms"` // Время до полного заряда
	RayLength        float32 `yaml:"ray_length" json:"ray_length"`                 // Длина луча при полном заряде
	ChargeColorStart string  `yaml:"charge_color_start" json:"charge_color_start"`
	ChargeColorEnd   string  `yaml:"charge_color_end" json:"charge_color_end"`
}

// MaxChargeTime возвращает время полного заряда как time.Duration
func (g GameplayConfig) MaxChargeTime() time.Duration {
	return time.Duration(g.MaxChargeTimeMs) * time.Millisecond
}

// WorldConfig содержит настройки бесконечного пола
type WorldConfig struct {
	ChunkSize         float32 `yaml:"chunk_size" json:"chunk_size"`
	ChunksVisible     int     `yaml:"chunks_visible" json:"chunks_visible"`
	ChunkBufferBehind int     `yaml:"chunk_buffer_behind" json:"chunk_buffer_behind"`
	FloorThickness    float32 `yaml:"floor_thickness" json:"floor_thickness"`
	FloorY            float32 `yaml:"floor_y" json:"floor_y"`
	GridDivisions     int     `yaml:"grid_divisions" json:"grid_divisions"`
	BackgroundColor   string  `yaml:"background_color" json:"background_color"`
	GridColor1        string  `yaml:"grid_color1" json:"grid_color1"`
	GridColor2        string  `yaml:"grid_color2" json:"grid_color2"`
}

// CameraConfig содержит стартовое положение рига
type CameraConfig struct {
	StartZ float32 `yaml:"start_z" json:"start_z"`
}

// ProjectileConfig содержит базовые параметры снаряда
type ProjectileConfig struct {
	Radius float32 `yaml:"radius" json:"radius"` // Радиус при полном заряде
	Mass   float32 `yaml:"mass" json:"mass"`
	Color  string  `yaml:"color" json:"color"`
}

// CleanupConfig задает окно жизни снарядов относительно рига
type CleanupConfig struct {
	BehindDistance float32 `yaml:"behind_distance" json:"behind_distance"`
	FarDistance    float32 `yaml:"far_distance" json:"far_distance"`
	FloorHeight    float32 `yaml:"floor_height" json:"floor_height"`
}

// ServerConfig содержит настройки сервера и частоту кадров
type ServerConfig struct {
	Addr               string `yaml:"addr" json:"addr"`
	TargetFPS          int    `yaml:"target_fps" json:"target_fps"`
	SnapshotIntervalMs int64  `yaml:"snapshot_interval_ms" json:"snapshot_interval_ms"`
	Codec              string `yaml:"codec" json:"codec"` // json или msgpack
}

// SnapshotInterval возвращает интервал рассылки снимков сцены
func (s ServerConfig) SnapshotInterval() time.Duration {
	return time.Duration(s.SnapshotIntervalMs) * time.Millisecond
}

// Config объединяет все группы настроек. Создается один раз и дальше только читается.
type Config struct {
	Physics    PhysicsConfig    `yaml:"physics" json:"physics"`
	Gameplay   GameplayConfig   `yaml:"gameplay" json:"gameplay"`
	World      WorldConfig      `yaml:"world" json:"world"`
	Camera     CameraConfig     `yaml:"camera" json:"camera"`
	Projectile ProjectileConfig `yaml:"projectile" json:"projectile"`
	Cleanup    CleanupConfig    `yaml:"cleanup" json:"cleanup"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		Physics: PhysicsConfig{
			Gravity:       -9.8,
			Steps:         10,
			FixedTimeStep: 1.0 / 60.0,
			Margin:        0.05,
			Friction:      0.5,
			Restitution:   0.9,
		},
		Gameplay: GameplayConfig{
			Speed:            6,
			MinForce:         15,
			MaxForce:         60,
			MaxChargeTimeMs:  1000,
			RayLength:        100,
			ChargeColorStart: "#0066ff", // синий
			ChargeColorEnd:   "#ff0000", // красный
		},
		World: WorldConfig{
			ChunkSize:         100,
			ChunksVisible:     5,
			ChunkBufferBehind: 2,
			FloorThickness:    1,
			FloorY:            -1,
			GridDivisions:     20,
			BackgroundColor:   "#050505",
			GridColor1:        "#ff00cc",
			GridColor2:        "#444444",
		},
		Camera: CameraConfig{
			StartZ: 5,
		},
		Projectile: ProjectileConfig{
			Radius: 0.2,
			Mass:   5,
			Color:  "#00ffcc",
		},
		Cleanup: CleanupConfig{
			BehindDistance: 50,
			FarDistance:    300,
			FloorHeight:    -10,
		},
		Server: ServerConfig{
			Addr:               ":8080",
			TargetFPS:          60,
			SnapshotIntervalMs: 50,
			Codec:              "json",
		},
	}
}

// Load читает YAML файл поверх значений по умолчанию.
// Пустой путь означает конфигурацию по умолчанию.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse разбирает YAML документ поверх значений по умолчанию и проверяет результат
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет, что значения пригодны для работы ядра
func (c Config) Validate() error {
	switch {
	case c.Physics.Steps <= 0:
		return fmt.Errorf("%w: physics.steps must be positive", ErrInvalid)
	case c.Physics.FixedTimeStep <= 0:
		return fmt.Errorf("%w: physics.fixed_time_step must be positive", ErrInvalid)
	case c.Gameplay.MaxChargeTimeMs <= 0:
		return fmt.Errorf("%w: gameplay.max_charge_time_ms must be positive", ErrInvalid)
	case c.Gameplay.Speed <= 0:
		return fmt.Errorf("%w: gameplay.speed must be positive", ErrInvalid)
	case c.Gameplay.MinForce < 0:
		return fmt.Errorf("%w: gameplay.min_force must not be negative", ErrInvalid)
	case c.Gameplay.MaxForce < c.Gameplay.MinForce:
		return fmt.Errorf("%w: gameplay.max_force < gameplay.min_force", ErrInvalid)
	case c.World.ChunkSize <= 0:
		return fmt.Errorf("%w: world.chunk_size must be positive", ErrInvalid)
	case c.World.ChunksVisible <= 0:
		return fmt.Errorf("%w: world.chunks_visible must be positive", ErrInvalid)
	case c.World.ChunkBufferBehind < 0:
		return fmt.Errorf("%w: world.chunk_buffer_behind must not be negative", ErrInvalid)
	case c.Projectile.Radius <= 0 || c.Projectile.Mass <= 0:
		return fmt.Errorf("%w: projectile radius and mass must be positive", ErrInvalid)
	case c.Cleanup.BehindDistance < 0 || c.Cleanup.FarDistance <= 0:
		return fmt.Errorf("%w: cleanup distances out of range", ErrInvalid)
	case c.Server.TargetFPS <= 0:
		return fmt.Errorf("%w: server.target_fps must be positive", ErrInvalid)
	case c.Server.Codec != "json" && c.Server.Codec != "msgpack":
		return fmt.Errorf("%w: server.codec must be json or msgpack", ErrInvalid)
	}
	return nil
}
