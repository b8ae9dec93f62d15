package internal

import "time"

type Config struct {
	Host                 string        `env:"HOST,required=true"`
	Port                 int           `env:"PORT,required=true"`
	DebugPort            int           `env:"DEBUG_PORT,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	FeedBufferSize       int           `env:"FEED_BUFFER_SIZE,required=true"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	TypingTimeout        time.Duration `env:"TYPING_TIMEOUT,required=true"`
	ResyncInterval       time.Duration `env:"RESYNC_INTERVAL,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	AuthSigningKey       string        `env:"AUTH_SIGNING_KEY,required=true"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
}
