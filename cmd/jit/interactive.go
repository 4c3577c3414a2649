package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/internal/tui"
	"github.com/ShayCichocki/jit/internal/version"
)

// eventBufferSize bounds the events waiting for the TUI to draw them.
const eventBufferSize = 256

func runInteractive() error {
	rt, err := newRuntime(needEngine)
	if err != nil {
		return err
	}
	defer rt.Close()

	program, _ := tui.NewProgram(tui.Config{
		Responder: rt.facade,
		Memory:    rt.session,
		Registry:  rt.tools.Current,
		Version:   version.Get(),
	})

	// Program.Send blocks while Update runs, so events pass through a
	// buffered emitter.
	emitter := engine.NewEventEmitter(eventBufferSize)
	defer emitter.Close()
	rt.events.Add(emitter)
	go forwardEvents(emitter.Events(), program)

	rt.tools.OnReload(func(_ *capability.Registry, err error) {
		if err != nil {
			rt.logger.Log("[tools] reload failed: %v", err)
			return
		}
		rt.logger.Log("[tools] reloaded")
	})

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	if dropped := emitter.DroppedCount(); dropped > 0 {
		rt.logger.Log("[tui] dropped %d events", dropped)
	}
	return nil
}

func forwardEvents(events <-chan engine.Event, program *tea.Program) {
	for e := range events {
		program.Send(tui.EventMsg{Event: e})
	}
}
