package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// errInterrupted ends the actor group on a requested shutdown.
var errInterrupted = errors.New("interrupted")

func interrupt(cancel <-chan struct{}) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	select {
	case sig := <-c:
		return fmt.Errorf("%w: received signal %s", errInterrupted, sig)
	case <-cancel:
		return fmt.Errorf("%w: canceled", errInterrupted)
	}
}

// exitError keeps the error that stopped the actor group unless it was a
// requested shutdown.
func exitError(err error) error {
	if err == nil || errors.Is(err, errInterrupted) {
		return nil
	}
	return err
}
