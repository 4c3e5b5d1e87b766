package main

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/feresegna/bus-portal/internal/config"
	"github.com/feresegna/bus-portal/internal/events"
)

func TestNewPublisher_NoBroker(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := newPublisher(&config.Config{}, logger)

	assert.IsType(t, events.Nop{}, p)
	assert.Contains(t, hook.LastEntry().Message, "MQTT_BROKER not set")
}

func TestWorkspaceFactory(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ws := workspaceFactory(nil, nil, logger)("client-1")

	assert.NotNil(t, ws.Session)
	assert.NotNil(t, ws.Booking)
	assert.True(t, ws.Session.State().Loading)
	assert.Equal(t, 1, ws.Booking.State().SearchParams.Passengers)
}
