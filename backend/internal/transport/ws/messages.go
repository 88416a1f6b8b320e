package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"x-rail/backend/internal/input"
)

// Типы сообщений
const (
	// Сервер -> клиент
	MessageTypeInfo     = "info"     // Информационное сообщение
	MessageTypeConfig   = "config"   // Действующая конфигурация
	MessageTypeSnapshot = "snapshot" // Снимок сцены
	MessageTypePong     = "pong"     // Ответ на пинг

	// Клиент -> сервер
	MessageTypeSelectStart = "select_start" // Нажатие курка
	MessageTypeSelectEnd   = "select_end"   // Отпускание курка
	MessageTypePose        = "pose"         // Поза контроллера в системе рига
	MessageTypePing        = "ping"         // Пинг для измерения задержки
)

var (
	// ErrInvalidMessage сообщение не разбирается или не содержит обязательных полей
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnknownMessage тип сообщения не поддерживается
	ErrUnknownMessage = errors.New("unknown message type")
)

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// SelectMessage нажатие или отпускание курка устройства
type SelectMessage struct {
	Type   string `json:"type"`
	Device string `json:"device"`
}

// PoseMessage поза устройства в системе координат рига
type PoseMessage struct {
	Type   string  `json:"type"`
	Device string  `json:"device"`
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Z      float32 `json:"z"`
	QX     float32 `json:"qx"`
	QY     float32 `json:"qy"`
	QZ     float32 `json:"qz"`
	QW     float32 `json:"qw"`
}

// DevicePose переводит сообщение в позу устройства
func (m *PoseMessage) DevicePose() input.DevicePose {
	return input.DevicePose{
		ID:          input.DeviceID(m.Device),
		Position:    mgl32.Vec3{m.X, m.Y, m.Z},
		Orientation: mgl32.Quat{W: m.QW, V: mgl32.Vec3{m.QX, m.QY, m.QZ}},
	}
}

// PingMessage представляет пинг от клиента
type PingMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
}

// PongMessage представляет ответ на пинг от сервера
type PongMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
	ServerTime int64   `json:"server_time"`
}

// InfoMessage представляет информационное сообщение от сервера
type InfoMessage struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	ClientID string `json:"client_id,omitempty"`
	Codec    string `json:"codec,omitempty"`
}

// ConfigMessage отправляет клиенту настройки, нужные для построения сцены
type ConfigMessage struct {
	Type   string      `json:"type"`
	Config interface{} `json:"config"`
}

// NewPongMessage создает ответ на пинг
func NewPongMessage(clientTime float64) *PongMessage {
	return &PongMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewInfoMessage создает новое информационное сообщение
func NewInfoMessage(message string) *InfoMessage {
	return &InfoMessage{
		Type:    MessageTypeInfo,
		Message: message,
	}
}

// GetMessageType возвращает тип сообщения на основе входных данных
func GetMessageType(data []byte) (string, error) {
	var baseMessage struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &baseMessage); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	return baseMessage.Type, nil
}

// ParseMessage разбирает входящее сообщение в соответствующий тип
func ParseMessage(data []byte) (interface{}, error) {
	messageType, err := GetMessageType(data)
	if err != nil {
		return nil, err
	}

	switch messageType {
	case MessageTypeSelectStart, MessageTypeSelectEnd:
		var msg SelectMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, messageType, err)
		}
		if msg.Device == "" {
			return nil, fmt.Errorf("%w: %s without device", ErrInvalidMessage, messageType)
		}
		return &msg, nil

	case MessageTypePose:
		var msg PoseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: pose: %v", ErrInvalidMessage, err)
		}
		if msg.Device == "" {
			return nil, fmt.Errorf("%w: pose without device", ErrInvalidMessage)
		}
		if !finite(msg.X, msg.Y, msg.Z, msg.QX, msg.QY, msg.QZ, msg.QW) {
			return nil, fmt.Errorf("%w: pose with non-finite values", ErrInvalidMessage)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: ping: %v", ErrInvalidMessage, err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, messageType)
	}
}

func finite(values ...float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
