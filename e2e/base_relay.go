package e2e

import (
	"fmt"
	"time"

	"clinic-relay/client"
	"clinic-relay/domain"
	"clinic-relay/domain/event"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const receiveTimeout = 5 * time.Second

// BaseRelaySuite connects live participants against a running relay.
// Suites are skipped when RELAY_ADDR is not set, so the package is safe to
// run in a unit-test-only pipeline.
type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, skipping relay end-to-end suite")
	}
}

// Connect dials the relay as the given participant, with a colorized header
// in the logs.
func (s *BaseRelaySuite) Connect(name string, self domain.Participant) *client.Client {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	log := logs.GetLoggerFromString(s.Config.LogLevel)
	c, err := client.Dial(log, s.Config.RelayAddr, self, 16)
	s.Require().NoError(err, "Failed to connect participant %s", self.ID)

	s.T().Cleanup(func() { _ = c.Close() })
	return c
}

// Receive waits for the next frame with the given event name, failing the
// suite on timeout.
func (s *BaseRelaySuite) Receive(c *client.Client, name string) event.Envelope {
	deadline := time.After(receiveTimeout)
	for {
		select {
		case env, ok := <-c.Frames():
			s.Require().True(ok, "Connection closed while waiting for %s", name)
			if env.Event == name {
				return env
			}
			// Other frames (typing noise) are ignored
		case <-deadline:
			s.Require().FailNowf("timeout", "No %s frame within %v", name, receiveTimeout)
			return event.Envelope{}
		}
	}
}
