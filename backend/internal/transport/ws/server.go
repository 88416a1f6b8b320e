package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"x-rail/backend/internal/config"
	"x-rail/backend/internal/game"
	"x-rail/backend/internal/input"
)

const (
	DefaultSnapshotInterval = 50 * time.Millisecond // Интервал отправки снимков
	maxMessageSize          = 4096
)

// SessionPort то, что транспорту нужно от игровой сессии
type SessionPort interface {
	EnqueueSelectStart(device input.DeviceID, at time.Time) error
	EnqueueSelectEnd(device input.DeviceID, at time.Time) error
	EnqueuePose(pose input.DevicePose) error
	Snapshot() game.Snapshot
	Config() config.Config
}

// Client подключенный клиент
type Client struct {
	ID     string
	Codec  string
	writer *SafeWriter
}

// MessageHandler - тип функции обработчика сообщений
type MessageHandler func(client *Client, message interface{}) error

// WSServer раздает снимки сцены и принимает жесты контроллеров
type WSServer struct {
	upgrader         websocket.Upgrader
	session          SessionPort
	handlers         map[string]MessageHandler
	snapshotInterval time.Duration
	codec            string
	logger           *log.Logger

	clients   map[*Client]struct{}
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	received atomic.Uint64
	rejected atomic.Uint64
	sent     atomic.Uint64
}

// NewWSServer создает новый экземпляр WebSocket сервера
func NewWSServer(session SessionPort, cfg config.ServerConfig, logger *log.Logger) *WSServer {
	if logger == nil {
		logger = log.Default()
	}

	interval := cfg.SnapshotInterval()
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	codec := cfg.Codec
	if codec == "" {
		codec = CodecJSON
	}

	server := &WSServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		session:          session,
		handlers:         make(map[string]MessageHandler),
		snapshotInterval: interval,
		codec:            codec,
		logger:           logger,
		clients:          make(map[*Client]struct{}),
	}

	// Регистрируем стандартные обработчики
	server.RegisterHandler(MessageTypeSelectStart, server.handleSelectStart)
	server.RegisterHandler(MessageTypeSelectEnd, server.handleSelectEnd)
	server.RegisterHandler(MessageTypePose, server.handlePose)
	server.RegisterHandler(MessageTypePing, server.handlePing)

	return server
}

// RegisterHandler регистрирует обработчик для конкретного типа сообщений
func (s *WSServer) RegisterHandler(messageType string, handler MessageHandler) {
	s.handlers[messageType] = handler
}

// HandleWS обрабатывает входящие WebSocket соединения
func (s *WSServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	codec := s.codec
	if requested := r.URL.Query().Get("codec"); requested != "" {
		if requested != CodecJSON && requested != CodecMsgpack {
			http.Error(w, fmt.Sprintf("unknown codec %q", requested), http.StatusBadRequest)
			return
		}
		codec = requested
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[WSServer] Ошибка при установке WebSocket соединения: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		ID:     fmt.Sprintf("client-%d", s.nextID.Add(1)),
		Codec:  codec,
		writer: NewSafeWriter(conn),
	}
	s.addClient(client)
	s.logger.Printf("[WSServer] Клиент %s подключен (%s, кодек %s)", client.ID, r.RemoteAddr, codec)

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup

	defer func() {
		cancel()
		wg.Wait()
		s.removeClient(client)
		client.writer.Close()
		s.logger.Printf("[WSServer] Клиент %s отключен", client.ID)
	}()

	if err := s.greet(client); err != nil {
		s.logger.Printf("[WSServer] Ошибка приветствия клиента %s: %v", client.ID, err)
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.streamSnapshots(ctx, client)
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("[WSServer] Ошибка чтения от %s: %v", client.ID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.received.Add(1)

		if err := s.dispatch(client, data); err != nil {
			s.rejected.Add(1)
			s.logger.Printf("[WSServer] Сообщение от %s отклонено: %v", client.ID, err)
		}
	}
}

// dispatch разбирает сообщение и вызывает обработчик
func (s *WSServer) dispatch(client *Client, data []byte) error {
	message, err := ParseMessage(data)
	if err != nil {
		return err
	}

	messageType, _ := GetMessageType(data)
	handler, ok := s.handlers[messageType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, messageType)
	}
	return handler(client, message)
}

// greet отправляет клиенту приветствие и конфигурацию сцены
func (s *WSServer) greet(client *Client) error {
	info := NewInfoMessage("connected")
	info.ClientID = client.ID
	info.Codec = client.Codec
	if err := client.writer.WriteJSON(info); err != nil {
		return err
	}

	return client.writer.WriteJSON(&ConfigMessage{
		Type:   MessageTypeConfig,
		Config: s.session.Config(),
	})
}

// streamSnapshots отправляет снимки сцены, пока клиент подключен
func (s *WSServer) streamSnapshots(ctx context.Context, client *Client) {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	var lastTick uint64
	sentOnce := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snapshot := s.session.Snapshot()
		// Кадр не сменился, повторять снимок незачем
		if sentOnce && snapshot.Tick == lastTick {
			continue
		}

		if err := s.sendSnapshot(client, snapshot); err != nil {
			s.logger.Printf("[WSServer] Ошибка отправки снимка клиенту %s: %v", client.ID, err)
			return
		}
		lastTick = snapshot.Tick
		sentOnce = true
	}
}

func (s *WSServer) sendSnapshot(client *Client, snapshot game.Snapshot) error {
	data, binary, err := EncodeSnapshot(NewSnapshotMessage(snapshot), client.Codec)
	if err != nil {
		return err
	}

	if binary {
		err = client.writer.WriteBinary(data)
	} else {
		err = client.writer.WriteMessage(websocket.TextMessage, data)
	}
	if err == nil {
		s.sent.Add(1)
	}
	return err
}

func (s *WSServer) handleSelectStart(client *Client, message interface{}) error {
	msg, ok := message.(*SelectMessage)
	if !ok {
		return ErrInvalidMessage
	}
	return s.session.EnqueueSelectStart(input.DeviceID(msg.Device), time.Now())
}

func (s *WSServer) handleSelectEnd(client *Client, message interface{}) error {
	msg, ok := message.(*SelectMessage)
	if !ok {
		return ErrInvalidMessage
	}
	return s.session.EnqueueSelectEnd(input.DeviceID(msg.Device), time.Now())
}

func (s *WSServer) handlePose(client *Client, message interface{}) error {
	msg, ok := message.(*PoseMessage)
	if !ok {
		return ErrInvalidMessage
	}
	return s.session.EnqueuePose(msg.DevicePose())
}

func (s *WSServer) handlePing(client *Client, message interface{}) error {
	msg, ok := message.(*PingMessage)
	if !ok {
		return ErrInvalidMessage
	}
	return client.writer.WriteJSON(NewPongMessage(msg.ClientTime))
}

func (s *WSServer) addClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client] = struct{}{}
}

func (s *WSServer) removeClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, client)
}

// ClientCount возвращает количество подключенных клиентов
func (s *WSServer) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// CloseAll закрывает все соединения
func (s *WSServer) CloseAll() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		client.writer.Close()
	}
}

// Stats возвращает счетчики транспорта
func (s *WSServer) Stats() map[string]interface{} {
	return map[string]interface{}{
		"clients":           s.ClientCount(),
		"messages_received": s.received.Load(),
		"messages_rejected": s.rejected.Load(),
		"snapshots_sent":    s.sent.Load(),
		"codec":             s.codec,
	}
}
