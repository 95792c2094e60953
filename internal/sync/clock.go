// ABOUTME: Clock synchronization with drift compensation
// ABOUTME: Tracks both offset AND drift to handle clock frequency differences
package sync

import (
	"log"
	"sync"
	"time"
)

const (
	// MaxRTT discards samples measured during network congestion
	MaxRTT = 100000 // 100ms

	// MaxResidual rejects samples that disagree with the drift prediction
	MaxResidual = 50000 // 50ms

	// DegradedRTT marks quality degraded above this round trip
	DegradedRTT = 50000 // 50ms

	// LostAfter marks quality lost when no sample arrived for this long
	LostAfter = 5 * time.Second
)

// ClockSync manages clock synchronization with drift compensation.
// All times are microseconds; local times come from the now func.
type ClockSync struct {
	mu             sync.RWMutex
	now            func() int64
	offset         int64   // Current offset in microseconds (server - client)
	drift          float64 // Clock drift rate (dimensionless: μs/μs)
	rawOffset      int64   // Latest raw offset measurement
	rtt            int64   // Latest round-trip time
	quality        Quality
	lastSyncMicros int64 // Local time when offset/drift were last updated
	sampleCount    int
	smoothingRate  float64
}

// Quality represents sync quality
type Quality int

const (
	QualityLost Quality = iota
	QualityGood
	QualityDegraded
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

// Stats is a snapshot of the estimator
type Stats struct {
	Offset    int64
	Drift     float64
	RTT       int64
	RawOffset int64
	Quality   Quality
	Samples   int
}

// NewClockSync creates a new clock synchronizer reading local time from now.
// A nil now uses ClientMicros.
func NewClockSync(now func() int64) *ClockSync {
	if now == nil {
		now = ClientMicros
	}
	return &ClockSync{
		now:           now,
		smoothingRate: 0.1, // 10% weight to new samples
		quality:       QualityLost,
	}
}

// ProcessSyncResponse processes a server/time response with drift compensation.
// t1 and t4 are local send/receive times, t2 and t3 server receive/send times.
func (cs *ClockSync) ProcessSyncResponse(t1, t2, t3, t4 int64) {
	rtt, measuredOffset := calculateOffset(t1, t2, t3, t4)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	cs.rawOffset = measuredOffset

	// Discard samples with high RTT (network congestion)
	if rtt > MaxRTT || rtt < 0 {
		log.Printf("Discarding sync sample: RTT %dμs", rtt)
		return
	}

	// First sync: initialize offset, no drift yet
	if cs.sampleCount == 0 {
		cs.offset = measuredOffset
		cs.lastSyncMicros = t4
		cs.sampleCount++
		cs.quality = qualityFor(rtt)
		log.Printf("Initial sync: offset=%dμs, rtt=%dμs", cs.offset, rtt)
		return
	}

	dt := float64(t4 - cs.lastSyncMicros)
	if dt <= 0 {
		log.Printf("Discarding sync sample: non-monotonic time")
		return
	}

	// Second sync: calculate initial drift
	if cs.sampleCount == 1 {
		cs.drift = float64(measuredOffset-cs.offset) / dt
		cs.offset = measuredOffset
		cs.lastSyncMicros = t4
		cs.sampleCount++
		cs.quality = qualityFor(rtt)
		log.Printf("Second sync: offset=%dμs, drift=%.9f, rtt=%dμs", cs.offset, cs.drift, rtt)
		return
	}

	// Predict what offset should be based on drift
	predictedOffset := cs.offset + int64(cs.drift*dt)
	residual := measuredOffset - predictedOffset

	// Reject outliers (clock jump or network spike)
	if residual > MaxResidual || residual < -MaxResidual {
		log.Printf("Discarding sync sample: large residual %dμs (possible clock jump)", residual)
		return
	}

	// Fixed-gain update of offset and drift
	cs.offset = predictedOffset + int64(cs.smoothingRate*float64(residual))
	cs.drift += cs.smoothingRate * float64(residual) / dt

	cs.lastSyncMicros = t4
	cs.sampleCount++
	cs.quality = qualityFor(rtt)

	if cs.sampleCount < 10 {
		log.Printf("Sync #%d: offset=%dμs, drift=%.9f, residual=%dμs, rtt=%dμs",
			cs.sampleCount, cs.offset, cs.drift, residual, rtt)
	}
}

func qualityFor(rtt int64) Quality {
	if rtt < DegradedRTT {
		return QualityGood
	}
	return QualityDegraded
}

// calculateOffset computes RTT and clock offset
func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	// Round-trip time
	rtt = (t4 - t1) - (t3 - t2)

	// Estimated offset (positive = server ahead of client)
	offset = ((t2 - t1) + (t3 - t4)) / 2

	return
}

// Offset returns the current offset
func (cs *ClockSync) Offset() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset
}

// Synced reports whether at least one sample was accepted
func (cs *ClockSync) Synced() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sampleCount > 0
}

// Stats returns sync statistics
func (cs *ClockSync) Stats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return Stats{
		Offset:    cs.offset,
		Drift:     cs.drift,
		RTT:       cs.rtt,
		RawOffset: cs.rawOffset,
		Quality:   cs.quality,
		Samples:   cs.sampleCount,
	}
}

// CheckQuality updates quality based on time since last sync
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.sampleCount == 0 || cs.now()-cs.lastSyncMicros > LostAfter.Microseconds() {
		cs.quality = QualityLost
	}

	return cs.quality
}

// LocalToServer converts a local timestamp to the server's clock:
// server = local + offset + drift * (local - lastSync)
func (cs *ClockSync) LocalToServer(local int64) int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.sampleCount == 0 {
		return local
	}
	return local + cs.offset + int64(cs.drift*float64(local-cs.lastSyncMicros))
}

// ServerToLocal converts a server timestamp to the local clock (inverse of LocalToServer)
func (cs *ClockSync) ServerToLocal(server int64) int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	// If we haven't synced yet, assume server time = client time
	if cs.sampleCount == 0 {
		return server
	}

	// client = (server - offset + drift * lastSync) / (1 + drift), computed
	// relative to lastSync to keep precision for large epochs
	rel := float64(server-cs.offset-cs.lastSyncMicros) / (1.0 + cs.drift)
	return cs.lastSyncMicros + int64(rel)
}

// ServerNow returns the current time in the server's reference frame
func (cs *ClockSync) ServerNow() int64 {
	return cs.LocalToServer(cs.now())
}

// ClientMicros returns raw client Unix epoch time in microseconds
func ClientMicros() int64 {
	return time.Now().UnixMicro()
}
