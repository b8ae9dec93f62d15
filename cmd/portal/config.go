package main

import "time"

type Config struct {
	RelayAddr            string        `env:"RELAY_ADDR,default=localhost:8080"`
	ParticipantID        string        `env:"PARTICIPANT_ID,required=true"`
	Role                 string        `env:"PARTICIPANT_ROLE,default=doctor"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	FeedBufferSize       int           `env:"FEED_BUFFER_SIZE,default=64"`
	TypingTimeout        time.Duration `env:"TYPING_TIMEOUT,default=3s"`
	ResyncInterval       time.Duration `env:"RESYNC_INTERVAL,default=30s"`
}
