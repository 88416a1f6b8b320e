package input

import (
	"sort"
	"time"
)

// DeviceID стабильная идентичность устройства ввода
type DeviceID string

// ChargeSession заряд, который копится пока устройство удерживает курок
type ChargeSession struct {
	Device DeviceID
	Start  time.Time
}

// ChargeController хранит не более одной сессии заряда на устройство
// и переводит длительность удержания в мощность [0, 1].
type ChargeController struct {
	maxChargeTime time.Duration
	sessions      map[DeviceID]ChargeSession
}

// NewChargeController создает контроллер заряда
func NewChargeController(maxChargeTime time.Duration) *ChargeController {
	return &ChargeController{
		maxChargeTime: maxChargeTime,
		sessions:      make(map[DeviceID]ChargeSession),
	}
}

// BeginCharge начинает заряд. Существующая сессия устройства перезаписывается.
func (c *ChargeController) BeginCharge(device DeviceID, now time.Time) {
	c.sessions[device] = ChargeSession{Device: device, Start: now}
}

// CurrentPower возвращает текущую мощность или false, если устройство не заряжает
func (c *ChargeController) CurrentPower(device DeviceID, now time.Time) (float64, bool) {
	session, ok := c.sessions[device]
	if !ok {
		return 0, false
	}
	return Power(session.Start, now, c.maxChargeTime), true
}

// EndCharge завершает заряд и возвращает итоговую мощность.
// Отпускание без нажатия игнорируется и возвращает false.
func (c *ChargeController) EndCharge(device DeviceID, now time.Time) (float64, bool) {
	power, ok := c.CurrentPower(device, now)
	if !ok {
		return 0, false
	}
	delete(c.sessions, device)
	return power, true
}

// Session возвращает сессию устройства
func (c *ChargeController) Session(device DeviceID) (ChargeSession, bool) {
	session, ok := c.sessions[device]
	return session, ok
}

// Devices возвращает заряжающие устройства в стабильном порядке
func (c *ChargeController) Devices() []DeviceID {
	devices := make([]DeviceID, 0, len(c.sessions))
	for device := range c.sessions {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i] < devices[j] })
	return devices
}

// Len возвращает количество активных сессий
func (c *ChargeController) Len() int {
	return len(c.sessions)
}

// Power переводит время удержания в мощность: clamp((now-start)/max, 0, 1).
// После полного заряда мощность остается равной 1.
func Power(start, now time.Time, maxChargeTime time.Duration) float64 {
	if maxChargeTime <= 0 {
		return 1
	}

	held := now.Sub(start)
	if held <= 0 {
		return 0
	}
	if held >= maxChargeTime {
		return 1
	}
	return float64(held) / float64(maxChargeTime)
}
