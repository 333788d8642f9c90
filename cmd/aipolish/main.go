package main

import (
	"os"
	"os/signal"
	"syscall"
)

// version is overridden at link time: -ldflags "-X main.version=1.2.0".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], newDefaultApp()))
}

func newDefaultApp() *app {
	return &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		notifySignals: func() (<-chan os.Signal, func()) {
			// Room for two: the first drains, the second forces.
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
			return ch, func() { signal.Stop(ch) }
		},
	}
}
