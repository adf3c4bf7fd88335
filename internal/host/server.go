// Package host implements the receive/dispatch pipeline: it drains the
// UDP socket, runs every datagram through decode and admission, routes
// accepted input to its slot and drives the virtual-controller sink.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/uozer7050/coopad/internal/config"
	"github.com/uozer7050/coopad/internal/metrics"
	"github.com/uozer7050/coopad/internal/protocol"
	"github.com/uozer7050/coopad/internal/security"
	"github.com/uozer7050/coopad/internal/session"
	"github.com/uozer7050/coopad/internal/sink"
)

// readBreak is how often the blocked socket read wakes up to poll for
// cancellation.
const readBreak = 500 * time.Millisecond

// telemetryInterval is how often rates and jitter are aggregated.
const telemetryInterval = time.Second

// sinkInitRetryDelay is the single retry backoff for platform drivers
// that initialize asynchronously.
const sinkInitRetryDelay = 2 * time.Second

// Server wires the codec, admission engine, session manager and sink into
// the receive pipeline. One goroutine drains the socket and executes the
// pipeline sequentially per packet; a second runs the periodic sweep and
// telemetry aggregation.
type Server struct {
	cfg       *config.Config
	registry  *security.Registry
	sessions  *session.Manager
	sink      sink.Sink
	telemetry *Telemetry

	started time.Time

	mu   sync.Mutex
	conn *net.UDPConn
}

// New creates a server. The registry, session manager and sink are
// injected so tests and alternative frontends can share the pipeline.
func New(cfg *config.Config, reg *security.Registry, sm *session.Manager, snk sink.Sink) *Server {
	return &Server{
		cfg:       cfg,
		registry:  reg,
		sessions:  sm,
		sink:      snk,
		telemetry: NewTelemetry(cfg.Slots()),
	}
}

// Run binds the socket, initializes the sink and serves until ctx is
// cancelled. Socket bind and sink init failures are fatal; nothing that
// happens per-packet ever terminates the loop.
func (s *Server) Run(ctx context.Context) error {
	if err := s.initSink(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.sink.Close(); err != nil {
			slog.Warn("sink close failed", "error", err)
		}
	}()

	addr := &net.UDPAddr{Port: s.cfg.Server.Port}
	if s.cfg.Server.BindIP != "" {
		ip := net.ParseIP(s.cfg.Server.BindIP)
		if ip == nil {
			return fmt.Errorf("coopad: invalid bind address %q", s.cfg.Server.BindIP)
		}
		addr.IP = ip
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind udp socket: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	s.started = time.Now()
	slog.Info("host listening",
		"addr", conn.LocalAddr(),
		"slots", s.cfg.Slots(),
		"coop", s.cfg.Session.CoopEnabled,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.periodicLoop(ctx)
	}()
	defer wg.Wait()

	return s.receiveLoop(ctx, conn)
}

// initSink initializes the sink, retrying once after a short delay for
// drivers that come up asynchronously.
func (s *Server) initSink(ctx context.Context) error {
	err := s.sink.Init()
	if err == nil {
		return nil
	}
	slog.Warn("sink init failed, retrying once", "error", err, "delay", sinkInitRetryDelay)

	select {
	case <-time.After(sinkInitRetryDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := s.sink.Init(); err != nil {
		return fmt.Errorf("sink init failed: %w", err)
	}
	return nil
}

// receiveLoop drains the socket until ctx is cancelled. The read blocks
// with a deadline so cancellation is observed within readBreak.
func (s *Server) receiveLoop(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, 2048)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(readBreak)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				if ctx.Err() != nil {
					slog.Info("host shutting down")
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("socket read failed", "error", err)
			continue
		}

		s.handleDatagram(buf[:n], raddr, time.Now())
	}
}

// handleDatagram runs the full pipeline for one datagram. Every failure
// short-circuits the rest and drops the packet; no response is ever sent.
func (s *Server) handleDatagram(data []byte, raddr *net.UDPAddr, now time.Time) {
	metrics.PacketsReceivedTotal.Inc()
	srcAddr := raddr.AddrPort().Addr().Unmap()

	// Whitelist and address blocks apply to the raw source before any
	// decoding, so refused addresses cannot reach the codec or mint
	// records through decode violations.
	if reason := s.registry.AdmitAddress(srcAddr, now); reason != security.RejectNone {
		metrics.PacketsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Debug("datagram refused", "reason", reason, "addr", srcAddr)
		return
	}

	pkt, err := protocol.Decode(data)
	if err != nil {
		s.rejectDecode(err, srcAddr, now)
		return
	}

	if reason := s.registry.Check(pkt.ClientID, srcAddr, pkt.Sequence, pkt.Timestamp, now); reason != security.RejectNone {
		metrics.PacketsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Debug("packet rejected",
			"reason", reason, "client_id", pkt.ClientID, "addr", srcAddr)
		return
	}
	metrics.PacketsAcceptedTotal.Inc()

	slot := s.sessions.Route(pkt.ClientID, now)
	if slot == session.NoSlot {
		// Accepted for telemetry purposes but another client drives the
		// controller right now.
		slog.Debug("no slot for client", "client_id", pkt.ClientID)
		return
	}

	if err := s.sink.Write(slot, pkt.State); err != nil {
		slog.Warn("sink write failed", "slot", slot, "error", err)
		return
	}
	metrics.SinkWritesTotal.WithLabelValues(slotLabel(slot)).Inc()
	s.telemetry.Record(slot, now)
}

// rejectDecode classifies codec failures. Oversized datagrams count as a
// violation against the source address; merely malformed ones do not.
func (s *Server) rejectDecode(err error, srcAddr netip.Addr, now time.Time) {
	switch {
	case errors.Is(err, protocol.ErrSizeExceeded):
		metrics.PacketsRejectedTotal.WithLabelValues("size_exceeded").Inc()
		s.registry.AddressViolation(srcAddr, "size_exceeded", now)
	case errors.Is(err, protocol.ErrBadVersion):
		metrics.PacketsRejectedTotal.WithLabelValues("bad_version").Inc()
	default:
		metrics.PacketsRejectedTotal.WithLabelValues("malformed").Inc()
	}
	slog.Debug("datagram dropped", "error", err, "addr", srcAddr)
}

// periodicLoop runs the registry sweep, slot expiry and telemetry
// aggregation off the receive path.
func (s *Server) periodicLoop(ctx context.Context) {
	sweep := time.NewTicker(s.cfg.Security.CleanupInterval)
	defer sweep.Stop()
	aggregate := time.NewTicker(telemetryInterval)
	defer aggregate.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-sweep.C:
			clients, addrs := s.registry.Sweep(now)
			if clients > 0 || addrs > 0 {
				slog.Debug("sweep evicted stale records", "clients", clients, "addrs", addrs)
			}
			metrics.SweepEvictionsTotal.WithLabelValues("client").Add(float64(clients))
			metrics.SweepEvictionsTotal.WithLabelValues("address").Add(float64(addrs))
		case now := <-aggregate.C:
			s.sessions.Expire(now)
			s.telemetry.Aggregate(now)
			st := s.registry.Snapshot(now)
			metrics.TrackedClients.Set(float64(st.TotalClients))
			metrics.BlockedClients.Set(float64(st.BlockedClients))
		}
	}
}

// Status is the JSON document served at /status.
type Status struct {
	UptimeSeconds float64               `json:"uptime_seconds"`
	Security      security.Stats        `json:"security"`
	Clients       []security.ClientInfo `json:"clients"`
	Slots         []session.SlotInfo    `json:"slots"`
	Telemetry     []SlotTelemetry       `json:"telemetry"`
	RecentEvents  []security.Event      `json:"recent_events"`
}

// StatusSnapshot assembles a point-in-time status document. Safe for
// concurrent use with the receive pipeline.
func (s *Server) StatusSnapshot() any {
	now := time.Now()
	var uptime float64
	if !s.started.IsZero() {
		uptime = now.Sub(s.started).Seconds()
	}
	return Status{
		UptimeSeconds: uptime,
		Security:      s.registry.Snapshot(now),
		Clients:       s.registry.Clients(now),
		Slots:         s.sessions.Snapshot(),
		Telemetry:     s.telemetry.Snapshot(),
		RecentEvents:  s.registry.RecentEvents(100),
	}
}

func slotLabel(slot int) string {
	// Slots are 0..3; avoid strconv on the hot path.
	labels := [...]string{"0", "1", "2", "3"}
	if slot >= 0 && slot < len(labels) {
		return labels[slot]
	}
	return "other"
}
