package config

import "os"

// Переменные окружения, перекрывающие настройки запуска
const (
	EnvConfigPath = "XRAIL_CONFIG"
	EnvAddr       = "XRAIL_ADDR"
)

// GetEnv возвращает значение переменной окружения или fallback, если она не задана
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ApplyEnv перекрывает адрес сервера значением из окружения
func (c Config) ApplyEnv() Config {
	c.Server.Addr = GetEnv(EnvAddr, c.Server.Addr)
	return c
}
