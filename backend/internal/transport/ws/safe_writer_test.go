package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"x-rail/backend/internal/game"
)

type frame struct {
	kind int
	data []byte
}

// newFramePair поднимает сервер, который складывает n полученных фреймов в канал
func newFramePair(t *testing.T, n int) (*SafeWriter, *websocket.Conn, <-chan []frame) {
	t.Helper()

	received := make(chan []frame, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		defer conn.Close()

		frames := make([]frame, 0, n)
		for len(frames) < n {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			frames = append(frames, frame{kind: kind, data: data})
		}
		received <- frames
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return NewSafeWriter(conn), conn, received
}

func waitFrames(t *testing.T, received <-chan []frame) []frame {
	t.Helper()
	select {
	case frames := <-received:
		return frames
	case <-time.After(2 * time.Second):
		t.Fatal("Сервер не дочитал фреймы")
		return nil
	}
}

// Снимки msgpack и ответы pong пишутся из разных горутин, как поток снимков и обработчик ping
func TestSafeWriter_SnapshotsAndPongsInterleave(t *testing.T) {
	const perKind = 20
	writer, _, received := newFramePair(t, 2*perKind)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 1; i <= perKind; i++ {
			msg := NewSnapshotMessage(game.Snapshot{Tick: uint64(i), Rig: mgl32.Vec3{0, 0, float32(-i)}})
			data, binary, err := EncodeSnapshot(msg, CodecMsgpack)
			if err != nil || !binary {
				t.Errorf("EncodeSnapshot: binary=%v err=%v", binary, err)
				return
			}
			if err := writer.WriteBinary(data); err != nil {
				t.Errorf("WriteBinary: %v", err)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 1; i <= perKind; i++ {
			if err := writer.WriteJSON(NewPongMessage(float64(i))); err != nil {
				t.Errorf("WriteJSON: %v", err)
			}
		}
	}()

	wg.Wait()
	frames := waitFrames(t, received)
	if len(frames) != 2*perKind {
		t.Fatalf("Ожидали %d фреймов, получили %d", 2*perKind, len(frames))
	}

	// Внутри каждого потока порядок сохраняется, фреймы не перемешиваются
	var lastTick uint64
	var lastPong float64
	for _, f := range frames {
		switch f.kind {
		case websocket.BinaryMessage:
			snapshot, err := DecodeSnapshot(f.data, true)
			if err != nil {
				t.Fatalf("Бинарный фрейм не разбирается как снимок: %v", err)
			}
			if snapshot.Tick != lastTick+1 || snapshot.Rig[2] != -float32(snapshot.Tick) {
				t.Errorf("Неожиданный снимок после tick=%d: %+v", lastTick, snapshot)
			}
			lastTick = snapshot.Tick

		case websocket.TextMessage:
			var pong PongMessage
			if err := json.Unmarshal(f.data, &pong); err != nil || pong.Type != MessageTypePong {
				t.Fatalf("Текстовый фрейм не является pong: %s", f.data)
			}
			if pong.ClientTime != lastPong+1 {
				t.Errorf("Pong пришел не по порядку: %v после %v", pong.ClientTime, lastPong)
			}
			lastPong = pong.ClientTime

		default:
			t.Errorf("Неожиданный тип фрейма %d", f.kind)
		}
	}

	if lastTick != perKind || lastPong != perKind {
		t.Errorf("Дошли не все сообщения: tick=%d pong=%v", lastTick, lastPong)
	}
}

func TestSafeWriter_RefreshesWriteDeadline(t *testing.T) {
	writer, conn, received := newFramePair(t, 1)

	// Просроченный дедлайн от прошлой записи не должен ломать следующую
	if err := conn.SetWriteDeadline(time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("SetWriteDeadline: %v", err)
	}
	if err := writer.WriteJSON(NewInfoMessage("connected")); err != nil {
		t.Fatalf("Запись после просроченного дедлайна: %v", err)
	}

	frames := waitFrames(t, received)
	if len(frames) != 1 || frames[0].kind != websocket.TextMessage {
		t.Fatalf("Ожидали один текстовый фрейм, получили %+v", frames)
	}
	if messageType, _ := GetMessageType(frames[0].data); messageType != MessageTypeInfo {
		t.Errorf("Ожидали info, получили %q", messageType)
	}
}

func TestSafeWriter_WriteAfterClose(t *testing.T) {
	writer, _, _ := newFramePair(t, 1)

	if err := writer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := writer.WriteBinary([]byte{0x80}); err == nil {
		t.Error("Бинарная запись в закрытое соединение должна вернуть ошибку")
	}
	if err := writer.WriteJSON(NewPongMessage(1)); err == nil {
		t.Error("Запись JSON в закрытое соединение должна вернуть ошибку")
	}
}
