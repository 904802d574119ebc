package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config хранит все переменные окружения для проекта (префикс CHAT_).
type Config struct {
	Addr      string `envconfig:"ADDR" default:":3001"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	// Через запятую; "*" — любой источник.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	AutoCreateRooms bool          `envconfig:"AUTO_CREATE_ROOMS" default:"true"`
	RoomCodeLength  int           `envconfig:"ROOM_CODE_LENGTH" default:"6"`
	CreatedRoomTTL  time.Duration `envconfig:"CREATED_ROOM_TTL" default:"10m"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	SendBuffer     int   `envconfig:"SEND_BUFFER" default:"64"`
	ReadLimit      int64 `envconfig:"READ_LIMIT" default:"32768"`
	MaxUsernameLen int   `envconfig:"MAX_USERNAME_LEN" default:"24"`
	MaxMessageLen  int   `envconfig:"MAX_MESSAGE_LEN" default:"2000"`

	PongWait        time.Duration `envconfig:"PONG_WAIT" default:"60s"`
	PingPeriod      time.Duration `envconfig:"PING_PERIOD" default:"45s"`
	WriteWait       time.Duration `envconfig:"WRITE_WAIT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load загружает конфигурацию из переменных окружения
// (.env подхватывается раньше, в main).
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("chat", &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	// PORT — привычная переменная хостингов; CHAT_ADDR важнее
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CHAT_ADDR") == "" {
		cfg.Addr = ":" + port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("CHAT_ADDR is not set")
	case c.RoomCodeLength < 4:
		return fmt.Errorf("CHAT_ROOM_CODE_LENGTH must be at least 4, got %d", c.RoomCodeLength)
	case c.SendBuffer <= 0:
		return fmt.Errorf("CHAT_SEND_BUFFER must be positive, got %d", c.SendBuffer)
	case c.ReadLimit <= 0:
		return fmt.Errorf("CHAT_READ_LIMIT must be positive, got %d", c.ReadLimit)
	case c.ReadLimit < MinReadLimit(c.MaxMessageLen):
		return fmt.Errorf("CHAT_READ_LIMIT (%d) must be at least %d to fit a CHAT_MAX_MESSAGE_LEN (%d) message",
			c.ReadLimit, MinReadLimit(c.MaxMessageLen), c.MaxMessageLen)
	case c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait:
		return fmt.Errorf("CHAT_PING_PERIOD (%s) must be positive and shorter than CHAT_PONG_WAIT (%s)", c.PingPeriod, c.PongWait)
	case c.WriteWait <= 0:
		return fmt.Errorf("CHAT_WRITE_WAIT must be positive")
	case c.SweepInterval <= 0 || c.CreatedRoomTTL <= 0:
		return fmt.Errorf("CHAT_SWEEP_INTERVAL and CHAT_CREATED_ROOM_TTL must be positive")
	}
	return nil
}

const (
	// Одна руна в JSON — до 12 байт: суррогатная пара \uXXXX\uXXXX.
	maxRuneBytes  = 12
	frameOverhead = 1024 // обёртка кадра message
)

// MinReadLimit — наименьший размер входящего кадра, при котором сообщение
// длиной maxMessageLen рун проходит до проверки длины, а не рвёт соединение.
func MinReadLimit(maxMessageLen int) int64 {
	if maxMessageLen <= 0 {
		return 0
	}
	return maxRuneBytes*int64(maxMessageLen) + frameOverhead
}
