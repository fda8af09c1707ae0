// Command device runs the display-side of the screen-streaming
// pipeline. It either serves a WebSocket endpoint for the Wi-Fi path
// or polls a serial port for the USB path, decoding and blitting
// incoming frames to a framebuffer.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/damianoneill/screenstream/internal/codec"
	"github.com/damianoneill/screenstream/internal/display"
	"github.com/damianoneill/screenstream/internal/trace"
	"github.com/damianoneill/screenstream/internal/transport"
)

func main() {
	var (
		listen  = flag.String("listen", ":8080", "address to listen on for the Wi-Fi path")
		serial  = flag.String("serial", "", "serial port to poll for the USB path, e.g. /dev/ttyUSB0")
		width   = flag.Int("width", 240, "display width in pixels")
		height  = flag.Int("height", 240, "display height in pixels")
		verbose = flag.Bool("v", false, "enable diagnostic tracing")
		legacy  = flag.Bool("legacy", false, "recognise legacy raw-RGB565/raw-LZ4 payloads alongside the delta protocol")
	)
	flag.Parse()

	hooks := trace.DefaultHooks
	if *verbose {
		hooks = trace.DiagnosticHooks
	}

	if *serial != "" {
		runUSB(*serial, *width, *height, hooks)
		return
	}
	runWifi(*listen, *width, *height, hooks, *legacy)
}

func runWifi(addr string, width, height int, hooks *trace.Trace, legacy bool) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	http.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("device: upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		blitter := display.NewFramebufferBlitter(width, height)
		dec := codec.NewDecoder()

		opts := []transport.DeviceLoopOption{transport.WithDeviceTrace(hooks)}
		if legacy {
			opts = append(opts, transport.WithLegacyFrames())
		}
		loop := transport.NewDeviceLoop(conn, dec, blitter, opts...)
		if err := loop.Run(); err != nil {
			log.Printf("device: session ended: %v", err)
		}
	})

	log.Printf("device: listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("device: %v", err)
	}
}

func runUSB(portName string, width, height int, hooks *trace.Trace) {
	port, err := transport.OpenSerial(portName, transport.DefaultBaudRate)
	if err != nil {
		log.Fatalf("device: opening %s: %v", portName, err)
	}
	defer port.Close()

	blitter := display.NewFramebufferBlitter(width, height)
	dec := codec.NewDecoder()

	loop := transport.NewDeviceUSBLoop(port, dec, blitter,
		transport.WithDeviceUSBTrace(hooks),
		transport.WithDeviceGeometry(width, height),
	)

	log.Printf("device: polling %s", portName)
	if err := loop.Run(context.Background()); err != nil {
		log.Fatalf("device: USB loop exited: %v", err)
	}
}
