// Package telemetry is a best-effort, non-core observer of the shared
// sample record (spec.md §5): it broadcasts the record as JSON over
// websocket connections to any attached monitoring client, accepting
// the same torn-read tolerance the record's single-writer/multi-reader
// design grants any other reader.
//
// Grounded on the pack's gorilla/websocket idiom (upgrader +
// *websocket.Conn.WriteJSON), since the teacher's own go.mod pulls in
// gorilla/websocket directly but the two files retrieved from it don't
// exercise it; this repo gives that dependency a concrete home.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/wtchen-rtpi/rtpidrone/data"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// snapshot is the wire format broadcast to telemetry clients: a flat
// copy of data.Record's exported fields, safe to marshal without
// holding any lock the scheduler takes (there isn't one; tearing is
// accepted here same as spec.md §5 describes for any offline reader).
type snapshot struct {
	Acc, AccEst []float64
	Gyr, GyrEst []float64
	Mag, MagEst []float64

	Altitude, AltEst     float64
	AltitudeHT, AltHTEst float64

	Temperature float64
	Pressure    float64

	Angle [3]float64
	Power [4]uint32

	T      time.Time
	DT     time.Duration
	DTAccu time.Duration
}

func snapshotOf(r *data.Record) snapshot {
	return snapshot{
		Acc: r.Acc, AccEst: r.AccEst,
		Gyr: r.Gyr, GyrEst: r.GyrEst,
		Mag: r.Mag, MagEst: r.MagEst,
		Altitude: r.Altitude, AltEst: r.AltEst,
		AltitudeHT: r.AltitudeHT, AltHTEst: r.AltHTEst,
		Temperature: r.Temperature, Pressure: r.Pressure,
		Angle: r.Angle, Power: r.Power,
		T: r.T, DT: r.DT, DTAccu: r.DTAccu,
	}
}

// Broadcaster fans a record out to every currently-connected websocket
// client, dropping slow clients rather than blocking the flight loop.
type Broadcaster struct {
	record *data.Record

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New constructs a Broadcaster observing record. record is read, never
// mutated, by this package.
func New(record *data.Record) *Broadcaster {
	return &Broadcaster{
		record:  record,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and registers it as a telemetry
// subscriber until it disconnects or a write fails.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("telemetry: upgrade failed: %v", err)
		return
	}

	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	glog.Infof("telemetry: client connected (%s)", r.RemoteAddr)

	// Drain inbound messages (none expected) until the client closes,
	// so the connection's read deadline/close frame is observed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	b.mu.Lock()
	delete(b.clients, conn)
	b.mu.Unlock()
	conn.Close()
	glog.Infof("telemetry: client disconnected (%s)", r.RemoteAddr)
}

// Run periodically broadcasts the current record snapshot to every
// connected client until stop is closed.
func (b *Broadcaster) Run(period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.broadcast()
		}
	}
}

func (b *Broadcaster) broadcast() {
	snap := snapshotOf(b.record)

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		if err := conn.WriteJSON(snap); err != nil {
			glog.Warningf("telemetry: dropping slow/closed client: %v", err)
			delete(b.clients, conn)
			conn.Close()
		}
	}
}
