package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	adapterPhysics "x-rail/backend/internal/adapter/out/physics"
	"x-rail/backend/internal/config"
	"x-rail/backend/internal/game"
	"x-rail/backend/internal/telemetry"
	"x-rail/backend/internal/transport/ws"
	"x-rail/backend/internal/world"
)

const (
	shutdownTimeout = 5 * time.Second
	statsInterval   = 5 * time.Second
)

// newLogger создает логгер сервера. Пакеты получают его через StandardLog,
// отладочные строки пишет только сам сервер.
func newLogger(w io.Writer, debug bool) *charmlog.Logger {
	level := charmlog.InfoLevel
	if debug {
		level = charmlog.DebugLevel
	}

	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "x-rail",
		Level:           level,
	})
}

// logStats пишет сводку состояния на уровне Debug
func logStats(logger *charmlog.Logger, stats, transport map[string]interface{}) {
	session, _ := stats["session"].(map[string]interface{})
	ticker, _ := stats["ticker"].(map[string]interface{})

	logger.Debug("Состояние",
		"tick", session["tick"],
		"rig_z", session["rig_z"],
		"projectiles", session["projectiles"],
		"fps", ticker["actual_fps"],
		"clients", transport["clients"],
	)
}

// writeJSON отправляет ответ HTTP в JSON формате
func writeJSON(w http.ResponseWriter, logger *log.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("[HTTP] Ошибка кодирования ответа: %v", err)
	}
}

func newMux(session *game.Session, wsServer *ws.WSServer, tm *telemetry.TelemetryManager, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", wsServer.HandleWS)

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := session.Stats()
		stats["transport"] = wsServer.Stats()
		writeJSON(w, logger, stats)
	})

	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		data, err := tm.GetTelemetryJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(data)
	})

	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, session.Config())
	})

	return mux
}

func run(ctx context.Context, cfg config.Config, charm *charmlog.Logger) error {
	logger := charm.StandardLog(charmlog.StandardLogOptions{ForceLevel: charmlog.InfoLevel})

	physics := adapterPhysics.NewDynamicsWorld(cfg.Physics, logger)
	physics.Init()

	scene := world.NewManager()
	tm := telemetry.NewTelemetryManager(logger)

	session, err := game.NewSession(cfg, scene, physics, tm, logger)
	if err != nil {
		return err
	}
	session.Start()
	defer session.Close()

	wsServer := ws.NewWSServer(session, cfg.Server, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(session, wsServer, tm, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return session.Run(gctx)
	})

	g.Go(func() error {
		logger.Printf("[Server] Запуск HTTP сервера на %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logStats(charm, session.Stats(), wsServer.Stats())
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("[Server] Остановка сервера...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Shutdown не закрывает захваченные WebSocket соединения
		wsServer.CloseAll()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	var (
		configPath = flag.String("config", config.GetEnv(config.EnvConfigPath, ""), "Путь к YAML файлу конфигурации")
		addr       = flag.String("addr", "", "Адрес HTTP сервера (перекрывает конфигурацию)")
		codec      = flag.String("codec", "", "Кодек снимков: json или msgpack")
		debug      = flag.Bool("debug", false, "Подробное логирование")
	)
	flag.Parse()

	charm := newLogger(os.Stderr, *debug)
	logger := charm.StandardLog(charmlog.StandardLogOptions{ForceLevel: charmlog.InfoLevel})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("[Server] Ошибка загрузки конфигурации: %v", err)
	}
	cfg = cfg.ApplyEnv()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *codec != "" {
		cfg.Server.Codec = *codec
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("[Server] Неверная конфигурация: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, charm); err != nil {
		logger.Fatalf("[Server] %v", err)
	}
	logger.Printf("[Server] Сервер остановлен")
}
