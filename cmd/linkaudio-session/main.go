// ABOUTME: Entry point for a standalone session host
// ABOUTME: Parses CLI flags and serves the shared timeline until interrupted
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/linkaudio/internal/session"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
)

var (
	port    = flag.Int("port", 8928, "WebSocket server port")
	name    = flag.String("name", "", "Session friendly name (default: hostname-linkaudio-session)")
	tempo   = flag.Float64("tempo", link.DefaultTempo, "Initial tempo in BPM")
	logFile = flag.String("log-file", "linkaudio-session.log", "Log file path")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	noMDNS  = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	// Log to both file and stdout
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	sessionName := *name
	if sessionName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		sessionName = fmt.Sprintf("%s-linkaudio-session", hostname)
	}

	log.Printf("Starting session host: %s on port %d", sessionName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	srv := session.New(session.Config{
		Port:       *port,
		Name:       sessionName,
		Tempo:      link.ClampTempo(*tempo),
		EnableMDNS: !*noMDNS,
		Debug:      *debug,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Shutdown signal received")
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Session host error: %v", err)
	}
}
