package ws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"x-rail/backend/internal/game"
	"x-rail/backend/internal/world"
)

// Кодеки снимков
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// ObjectState состояние объекта сцены в снимке
type ObjectState struct {
	ID        string     `json:"id" msgpack:"id"`
	Kind      string     `json:"kind" msgpack:"kind"`
	Owner     string     `json:"owner,omitempty" msgpack:"owner,omitempty"`
	Position  [3]float32 `json:"position" msgpack:"position"`
	Rotation  [4]float32 `json:"rotation" msgpack:"rotation"` // x, y, z, w
	Scale     float32    `json:"scale" msgpack:"scale"`
	Visible   bool       `json:"visible" msgpack:"visible"`
	Radius    float32    `json:"radius,omitempty" msgpack:"radius,omitempty"`
	Width     float32    `json:"width,omitempty" msgpack:"width,omitempty"`
	Depth     float32    `json:"depth,omitempty" msgpack:"depth,omitempty"`
	Length    float32    `json:"length,omitempty" msgpack:"length,omitempty"`
	Divisions int        `json:"divisions,omitempty" msgpack:"divisions,omitempty"`
	Color     string     `json:"color,omitempty" msgpack:"color,omitempty"`
	Color2    string     `json:"color2,omitempty" msgpack:"color2,omitempty"`
}

// SnapshotMessage снимок сцены на конец кадра
type SnapshotMessage struct {
	Type       string        `json:"type" msgpack:"type"`
	Tick       uint64        `json:"tick" msgpack:"tick"`
	ServerTime int64         `json:"server_time" msgpack:"server_time"`
	Rig        [3]float32    `json:"rig" msgpack:"rig"`
	Objects    []ObjectState `json:"objects" msgpack:"objects"`
}

// Вспомогательная функция для проверки и замены NaN
func safeFloat32(val float32, defaultVal float32) float32 {
	f := float64(val)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultVal
	}
	return val
}

// NewSnapshotMessage переводит снимок сессии в сообщение
func NewSnapshotMessage(snapshot game.Snapshot) *SnapshotMessage {
	msg := &SnapshotMessage{
		Type:       MessageTypeSnapshot,
		Tick:       snapshot.Tick,
		ServerTime: GetCurrentServerTime(),
		Rig: [3]float32{
			safeFloat32(snapshot.Rig.X(), 0),
			safeFloat32(snapshot.Rig.Y(), 0),
			safeFloat32(snapshot.Rig.Z(), 0),
		},
		Objects: make([]ObjectState, 0, len(snapshot.Objects)),
	}
	if !snapshot.Time.IsZero() {
		msg.ServerTime = snapshot.Time.UnixMilli()
	}

	for _, obj := range snapshot.Objects {
		msg.Objects = append(msg.Objects, NewObjectState(obj))
	}
	return msg
}

// NewObjectState переводит объект сцены в состояние снимка
func NewObjectState(obj world.Object) ObjectState {
	return ObjectState{
		ID:    obj.ID,
		Kind:  obj.Kind.String(),
		Owner: obj.Owner,
		Position: [3]float32{
			safeFloat32(obj.Position.X(), 0),
			safeFloat32(obj.Position.Y(), 0),
			safeFloat32(obj.Position.Z(), 0),
		},
		Rotation: [4]float32{
			safeFloat32(obj.Rotation.V.X(), 0),
			safeFloat32(obj.Rotation.V.Y(), 0),
			safeFloat32(obj.Rotation.V.Z(), 0),
			safeFloat32(obj.Rotation.W, 1),
		},
		Scale:     safeFloat32(obj.Scale, 1),
		Visible:   obj.Visible,
		Radius:    safeFloat32(obj.Radius, 1),
		Width:     obj.Width,
		Depth:     obj.Depth,
		Length:    safeFloat32(obj.Length, 0),
		Divisions: obj.Divisions,
		Color:     obj.Color,
		Color2:    obj.Color2,
	}
}

// EncodeSnapshot кодирует снимок выбранным кодеком.
// Возвращает признак бинарного фрейма.
func EncodeSnapshot(msg *SnapshotMessage, codec string) ([]byte, bool, error) {
	switch codec {
	case CodecMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.UseCompactInts(true)
		if err := enc.Encode(msg); err != nil {
			return nil, false, fmt.Errorf("msgpack snapshot: %w", err)
		}
		return buf.Bytes(), true, nil

	case CodecJSON, "":
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, false, fmt.Errorf("json snapshot: %w", err)
		}
		return data, false, nil

	default:
		return nil, false, fmt.Errorf("unknown codec %q", codec)
	}
}

// DecodeSnapshot разбирает снимок, закодированный EncodeSnapshot
func DecodeSnapshot(data []byte, binary bool) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if binary {
		if err := msgpack.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("msgpack snapshot: %w", err)
		}
		return &msg, nil
	}

	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("json snapshot: %w", err)
	}
	return &msg, nil
}
