// Command host runs the host side of the screen-streaming pipeline: it
// captures the local screen and streams it to a device, either over a
// WebSocket (Wi-Fi) or a serial byte stream (USB).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/damianoneill/screenstream/internal/capture"
	"github.com/damianoneill/screenstream/internal/config"
	"github.com/damianoneill/screenstream/internal/trace"
	"github.com/damianoneill/screenstream/internal/transport"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON config file (defaults in-memory only)")
		target     = flag.String("target", "", "override target address, e.g. ws://device.local:8080/stream or /dev/ttyUSB0")
		usb        = flag.Bool("usb", false, "with -target, treat the target as a serial device (USB) instead of a WebSocket URL (Wi-Fi)")
		verbose    = flag.Bool("v", false, "enable diagnostic tracing")
	)
	flag.Parse()

	store, err := config.NewStore(*configPath)
	if err != nil {
		log.Fatalf("host: loading config: %v", err)
	}
	if *target != "" {
		cfg := store.Get()
		if *usb {
			cfg.Target = config.Target{Kind: config.TargetUSB, Address: *target}
		} else {
			cfg.Target = config.Target{Kind: config.TargetWifi, Address: *target}
		}
		if err := store.Set(cfg); err != nil {
			log.Fatalf("host: applying target override: %v", err)
		}
	}

	hooks := trace.DefaultHooks
	if *verbose {
		hooks = trace.DiagnosticHooks
	}

	source := capture.Source(newSyntheticSource())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("host: signal received, shutting down")
		cancel()
	}()

	cfg := store.Get()
	if cfg.Target.Kind == config.TargetUSB {
		loop := transport.NewHostUSBLoop(transport.OpenSerial, store, source, transport.WithHostUSBTrace(hooks))
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("host: USB loop exited: %v", err)
		}
		return
	}

	loop := transport.NewHostLoop(transport.DialWebSocket, store, source, transport.WithHostTrace(hooks))
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("host: WebSocket loop exited: %v", err)
	}
}
