package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/server"
	"github.com/ShayCichocki/jit/internal/version"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat over HTTP and WebSocket",
	Long: `Serve the same chat as the interactive mode over HTTP and WebSocket.

Endpoints:
  GET    /api/status   Version, tools, memory and connected clients
  GET    /api/tools    Providers and their tools
  GET    /api/memory   Session memory status
  DELETE /api/memory   Clear session memory
  GET    /ws           Chat; send {"type":"message","content":"..."}

Progress events are broadcast to every connected client.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(needEngine)
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := serveAddr
	if addr == "" {
		addr = rt.cfg.Server.Addr
	}

	srv := server.New(server.RequiredConfig{Responder: rt.facade},
		server.WithMemory(rt.session),
		server.WithRegistrySource(rt.tools.Current),
		server.WithVersion(version.Get()),
		server.WithAllowedOrigins(rt.cfg.Server.AllowedOrigins...),
		server.WithLogger(rt.logger),
	)
	rt.events.Add(srv)

	rt.tools.OnReload(func(r *capability.Registry, err error) {
		if err != nil {
			printStatus("!", "Tool reload failed: "+err.Error(), color.FgYellow)
			return
		}
		printStatus("↻", "Tools reloaded: "+r.Describe(), color.FgCyan)
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printStatus("✓", "Listening on http://"+addr, color.FgGreen)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return err
	}
	printStatus("✓", "Server stopped", color.FgGreen)
	return nil
}
