package main

import (
	"io"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workday-engine/config"
)

func TestRun_ListenerFailureIsReturned(t *testing.T) {
	// GIVEN: The configured port is already taken
	taken, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer taken.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := config.Config{
		Port:     taken.Addr().(*net.TCPAddr).Port,
		DBPath:   ":memory:",
		LogLevel: "info",
	}

	// WHEN: The server runs
	err = run(cfg, logger)

	// THEN: The bind error comes back to the caller instead of exiting
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestRun_BadHolidayFile(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	err := run(config.Config{Port: 1, DBPath: ":memory:", HolidaysFile: t.TempDir() + "/missing.yaml"}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load holidays")
}
