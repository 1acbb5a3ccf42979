package body

import "time"

// Config holds forwarding settings loaded with core/config.
type Config struct {
	ChunkSize    int           `env:"BODY_CHUNK_SIZE" envDefault:"32768"`
	WriteTimeout time.Duration `env:"BODY_WRITE_TIMEOUT" envDefault:"0s"`
	LogLevel     string        `env:"BODY_LOG_LEVEL" envDefault:"info"`
}
