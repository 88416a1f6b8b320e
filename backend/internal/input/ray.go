package input

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"x-rail/backend/internal/config"
)

// Ray визуальная обратная связь заряда: луч растет и краснеет
type Ray struct {
	Scale  float32 // Доля полной длины
	Length float32
	Color  string
}

// RayPalette смешивает цвет луча между стартовым и конечным
type RayPalette struct {
	start     colorful.Color
	end       colorful.Color
	rayLength float32
}

// NewRayPalette разбирает цвета заряда из конфигурации
func NewRayPalette(cfg config.GameplayConfig) (*RayPalette, error) {
	start, err := colorful.Hex(cfg.ChargeColorStart)
	if err != nil {
		return nil, fmt.Errorf("charge_color_start %q: %w", cfg.ChargeColorStart, err)
	}
	end, err := colorful.Hex(cfg.ChargeColorEnd)
	if err != nil {
		return nil, fmt.Errorf("charge_color_end %q: %w", cfg.ChargeColorEnd, err)
	}

	return &RayPalette{start: start, end: end, rayLength: cfg.RayLength}, nil
}

// Feedback возвращает состояние луча для мощности power
func (p *RayPalette) Feedback(power float64) Ray {
	power = clamp01(power)
	return Ray{
		Scale:  float32(power),
		Length: float32(power) * p.rayLength,
		Color:  p.start.BlendRgb(p.end, power).Clamped().Hex(),
	}
}

// Idle возвращает луч после отпускания: нулевая длина, стартовый цвет
func (p *RayPalette) Idle() Ray {
	return Ray{Scale: 0, Length: 0, Color: p.start.Hex()}
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
