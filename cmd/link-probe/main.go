// ABOUTME: Diagnostic that joins a session without audio
// ABOUTME: Prints clock sync quality and the local beat/phase once per interval
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/linkaudio/internal/discovery"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
)

var (
	serverAddr = flag.String("server", "", "Session host address (default: discover via mDNS)")
	name       = flag.String("name", "link-probe", "Peer name")
	quantum    = flag.Float64("quantum", link.DefaultQuantum, "Beats per bar")
	interval   = flag.Duration("interval", 500*time.Millisecond, "Report interval")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	addr := *serverAddr
	if addr == "" {
		info, err := discovery.Lookup(5 * time.Second)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr = info.Addr()
	}

	fmt.Printf("Joining %s as '%s'...\n", addr, *name)

	clock := link.SystemClock{}
	peer, err := link.Join(link.PeerConfig{Addr: addr, Name: *name, Clock: clock})
	if err != nil {
		log.Fatalf("Join failed: %v", err)
	}
	defer peer.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			return
		case <-ticker.C:
			if !peer.Connected() {
				log.Printf("Disconnected from %s", addr)
				return
			}
			stats := peer.SyncStats()
			tl := peer.Timeline()
			beat := tl.BeatAtTime(clock.Micros())
			log.Printf("sync=%s offset=%+dμs rtt=%dμs tempo=%.2f beat=%.3f phase=%.3f peers=%d",
				stats.Quality, stats.Offset, stats.RTT, tl.Tempo, beat,
				link.Phase(beat, *quantum), peer.Peers())
		}
	}
}
