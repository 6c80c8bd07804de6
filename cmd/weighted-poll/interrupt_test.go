package main

import (
	"errors"
	"net/http"
	"testing"

	"github.com/oklog/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterruptCanceled(t *testing.T) {
	cancel := make(chan struct{})
	close(cancel)

	err := interrupt(cancel)
	require.ErrorIs(t, err, errInterrupted)
	assert.NoError(t, exitError(err))
}

func TestExitErrorKeepsActorFailure(t *testing.T) {
	listenErr := errors.New("listen tcp :8080: bind: address already in use")

	var g run.Group
	g.Add(func() error {
		return listenErr
	}, func(error) {})
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			return interrupt(cancel)
		}, func(error) {
			close(cancel)
		})
	}

	assert.Equal(t, listenErr, exitError(g.Run()))
	assert.Equal(t, http.ErrServerClosed, exitError(http.ErrServerClosed))
	assert.NoError(t, exitError(nil))
}
