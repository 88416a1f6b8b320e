package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"x-rail/backend/internal/transport/ws"
)

// Bot подключается к серверу и стреляет с заданным паттерном прицеливания
type Bot struct {
	ID         string
	ServerURL  string
	Codec      string
	Device     string
	Pattern    string
	Duration   time.Duration
	ShotRate   time.Duration
	MaxCharge  time.Duration
	Conn       *websocket.Conn
	Stats      BotStats
	writeMu    sync.Mutex // Мьютекс для синхронизации записи в WebSocket
	startedAt  time.Time
	lastRigPos [3]float32
}

// BotStats содержит статистику работы бота
type BotStats struct {
	ShotsFired        int
	PosesSent         int
	SnapshotsReceived int
	MaxProjectiles    int
	LastRTT           time.Duration
	Errors            int
	mu                sync.RWMutex
}

// NewBot создает нового бота
func NewBot(id, serverURL, codec, device, pattern string, duration, shotRate, maxCharge time.Duration) *Bot {
	return &Bot{
		ID:        id,
		ServerURL: serverURL,
		Codec:     codec,
		Device:    device,
		Pattern:   pattern,
		Duration:  duration,
		ShotRate:  shotRate,
		MaxCharge: maxCharge,
		startedAt: time.Now(),
	}
}

// Connect подключается к серверу
func (b *Bot) Connect() error {
	u, err := url.Parse(b.ServerURL)
	if err != nil {
		return fmt.Errorf("неверный URL: %v", err)
	}
	if b.Codec != "" {
		q := u.Query()
		q.Set("codec", b.Codec)
		u.RawQuery = q.Encode()
	}

	log.Printf("[Bot %s] Подключение к %s", b.ID, u.String())

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("ошибка подключения: %v", err)
	}
	b.Conn = conn

	log.Printf("[Bot %s] Успешно подключен", b.ID)
	return nil
}

func (b *Bot) countError() {
	b.Stats.mu.Lock()
	b.Stats.Errors++
	b.Stats.mu.Unlock()
}

func (b *Bot) writeJSON(v interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.Conn.WriteJSON(v)
}

// aim возвращает ориентацию контроллера для текущего паттерна
func (b *Bot) aim() mgl32.Quat {
	elapsed := time.Since(b.startedAt).Seconds()

	var yaw, pitch float64
	switch b.Pattern {
	case "sweep":
		// Плавный проход слева направо
		yaw = math.Sin(elapsed*0.7) * 0.6
		pitch = 0.15
	case "lob":
		// Навесная стрельба с раскачкой по вертикали
		yaw = 0
		pitch = 0.3 + math.Sin(elapsed*0.4)*0.3
	default: // "random"
		yaw = (rand.Float64()*2 - 1) * 0.7
		pitch = rand.Float64() * 0.5
	}

	return mgl32.AnglesToQuat(float32(pitch), float32(yaw), 0, mgl32.XYZ)
}

// sendPose отправляет позу контроллера в системе рига
func (b *Bot) sendPose() error {
	q := b.aim()
	msg := ws.PoseMessage{
		Type:   ws.MessageTypePose,
		Device: b.Device,
		X:      0.25,
		Y:      1.4,
		Z:      -0.3,
		QX:     q.V.X(),
		QY:     q.V.Y(),
		QZ:     q.V.Z(),
		QW:     q.W,
	}
	if err := b.writeJSON(msg); err != nil {
		return err
	}

	b.Stats.mu.Lock()
	b.Stats.PosesSent++
	b.Stats.mu.Unlock()
	return nil
}

// shoot зажимает курок на случайное время и отпускает его
func (b *Bot) shoot(ctx context.Context) error {
	if err := b.writeJSON(ws.SelectMessage{Type: ws.MessageTypeSelectStart, Device: b.Device}); err != nil {
		return err
	}

	hold := time.Duration(rand.Int64N(int64(b.MaxCharge))) + 50*time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(hold):
	}

	// Курок отпускаем даже при отмене, иначе заряд так и останется висеть
	if err := b.writeJSON(ws.SelectMessage{Type: ws.MessageTypeSelectEnd, Device: b.Device}); err != nil {
		return err
	}

	b.Stats.mu.Lock()
	b.Stats.ShotsFired++
	b.Stats.mu.Unlock()

	log.Printf("[Bot %s] Выстрел после заряда %v", b.ID, hold.Round(time.Millisecond))
	return nil
}

// sendPing отправляет ping сообщение
func (b *Bot) sendPing() error {
	return b.writeJSON(ws.PingMessage{
		Type:       ws.MessageTypePing,
		ClientTime: float64(time.Now().UnixMilli()),
	})
}

func (b *Bot) handleSnapshot(data []byte, binary bool) {
	snapshot, err := ws.DecodeSnapshot(data, binary)
	if err != nil {
		log.Printf("[Bot %s] Ошибка разбора снимка: %v", b.ID, err)
		b.countError()
		return
	}

	projectiles := 0
	for _, obj := range snapshot.Objects {
		if obj.Kind == "sphere" {
			projectiles++
		}
	}

	b.Stats.mu.Lock()
	b.Stats.SnapshotsReceived++
	if projectiles > b.Stats.MaxProjectiles {
		b.Stats.MaxProjectiles = projectiles
	}
	b.lastRigPos = snapshot.Rig
	b.Stats.mu.Unlock()
}

// handleMessage обрабатывает входящие сообщения
func (b *Bot) handleMessage(messageType int, data []byte) {
	if messageType == websocket.BinaryMessage {
		b.handleSnapshot(data, true)
		return
	}

	msgType, err := ws.GetMessageType(data)
	if err != nil {
		log.Printf("[Bot %s] Ошибка разбора сообщения: %v", b.ID, err)
		b.countError()
		return
	}

	switch msgType {
	case ws.MessageTypeSnapshot:
		b.handleSnapshot(data, false)

	case ws.MessageTypePong:
		var pong ws.PongMessage
		if err := json.Unmarshal(data, &pong); err != nil {
			b.countError()
			return
		}
		rtt := time.Duration(float64(time.Now().UnixMilli())-pong.ClientTime) * time.Millisecond
		b.Stats.mu.Lock()
		b.Stats.LastRTT = rtt
		b.Stats.mu.Unlock()

	case ws.MessageTypeInfo:
		var info ws.InfoMessage
		if err := json.Unmarshal(data, &info); err == nil {
			log.Printf("[Bot %s] Информация: %s (клиент %s, кодек %s)", b.ID, info.Message, info.ClientID, info.Codec)
		}

	case ws.MessageTypeConfig:
		log.Printf("[Bot %s] Получена конфигурация сцены", b.ID)

	default:
		log.Printf("[Bot %s] Неизвестный тип сообщения: %s", b.ID, msgType)
	}
}

// Run запускает бота до истечения Duration или отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Connect(); err != nil {
		return err
	}
	defer func() {
		b.Conn.Close()
		log.Printf("[Bot %s] Отключен", b.ID)
	}()

	ctx, cancel := context.WithTimeout(ctx, b.Duration)
	defer cancel()

	// Горутина чтения сообщений
	go func() {
		defer cancel()
		for {
			messageType, data, err := b.Conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[Bot %s] Ошибка чтения сообщения: %v", b.ID, err)
					b.countError()
				}
				return
			}
			b.handleMessage(messageType, data)
		}
	}()

	poseTicker := time.NewTicker(50 * time.Millisecond)
	defer poseTicker.Stop()
	shotTicker := time.NewTicker(b.ShotRate)
	defer shotTicker.Stop()
	pingTicker := time.NewTicker(5 * time.Second)
	defer pingTicker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			log.Printf("[Bot %s] Завершение работы", b.ID)
			return nil
		case <-poseTicker.C:
			err = b.sendPose()
		case <-shotTicker.C:
			err = b.shoot(ctx)
		case <-pingTicker.C:
			err = b.sendPing()
		}
		if err != nil {
			log.Printf("[Bot %s] Ошибка отправки: %v", b.ID, err)
			b.countError()
		}
	}
}

// PrintStats выводит статистику бота
func (b *Bot) PrintStats() {
	b.Stats.mu.RLock()
	defer b.Stats.mu.RUnlock()

	duration := time.Since(b.startedAt)
	log.Printf("[Bot %s] Статистика:", b.ID)
	log.Printf("  Время работы: %v", duration.Round(time.Millisecond))
	log.Printf("  Выстрелов: %d", b.Stats.ShotsFired)
	log.Printf("  Поз отправлено: %d", b.Stats.PosesSent)
	log.Printf("  Снимков получено: %d", b.Stats.SnapshotsReceived)
	log.Printf("  Максимум снарядов в снимке: %d", b.Stats.MaxProjectiles)
	log.Printf("  Позиция рига: (%.1f, %.1f, %.1f)", b.lastRigPos[0], b.lastRigPos[1], b.lastRigPos[2])
	log.Printf("  Последний RTT: %v", b.Stats.LastRTT)
	log.Printf("  Ошибок: %d", b.Stats.Errors)
	if b.Stats.SnapshotsReceived > 0 {
		log.Printf("  Частота снимков: %.2f/сек", float64(b.Stats.SnapshotsReceived)/duration.Seconds())
	}
}

func main() {
	var (
		serverURL = flag.String("url", "ws://localhost:8080/ws", "URL WebSocket сервера")
		botID     = flag.String("id", "bot1", "ID бота")
		codec     = flag.String("codec", "", "Кодек снимков (json, msgpack)")
		device    = flag.String("device", "right", "ID контроллера")
		pattern   = flag.String("pattern", "random", "Паттерн прицеливания (random, sweep, lob)")
		duration  = flag.Duration("duration", 30*time.Second, "Длительность работы бота")
		shotRate  = flag.Duration("rate", 1500*time.Millisecond, "Интервал между выстрелами")
		maxCharge = flag.Duration("charge", time.Second, "Максимальное время удержания курка")
	)
	flag.Parse()

	if *maxCharge <= 0 || *shotRate <= 0 {
		log.Fatalf("[Bot %s] rate и charge должны быть положительными", *botID)
	}

	bot := NewBot(*botID, *serverURL, *codec, *device, *pattern, *duration, *shotRate, *maxCharge)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := bot.Run(ctx); err != nil {
		log.Printf("[Bot %s] Ошибка: %v", bot.ID, err)
		os.Exit(1)
	}

	bot.PrintStats()
}
