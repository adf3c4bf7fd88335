// Package client implements the sending side: it samples controller state
// at a fixed rate, encodes it and streams it to the host over UDP. When no
// capture source is attached it sends neutral-state heartbeats so the host
// still sees a live, valid stream.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/uozer7050/coopad/internal/config"
	"github.com/uozer7050/coopad/internal/protocol"
)

// StateProvider supplies controller samples. Sample returns ok=false when
// no physical device is available; the sender then falls back to the
// neutral state.
type StateProvider interface {
	Sample() (protocol.GamepadState, bool)
}

// sendBufferSize is generous for VPN tunnels.
const sendBufferSize = 256 << 10

// Sender streams paced input packets to one host.
type Sender struct {
	cfg      config.ClientConfig
	provider StateProvider
	clientID uint32
	seq      uint16
}

// New creates a sender. provider may be nil for heartbeat-only operation.
// A zero configured client id picks a random 32-bit one.
func New(cfg config.ClientConfig, provider StateProvider) *Sender {
	id := cfg.ClientID
	for id == 0 {
		id = rand.Uint32()
	}
	return &Sender{cfg: cfg, provider: provider, clientID: id}
}

// ClientID returns the id this sender stamps on its packets.
func (s *Sender) ClientID() uint32 { return s.clientID }

// Run streams until ctx is cancelled. The host never replies, so the only
// error source is the local socket.
func (s *Sender) Run(ctx context.Context) error {
	raddr, err := net.ResolveUDPAddr("udp", s.cfg.Target)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", s.cfg.Target, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("failed to dial host: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteBuffer(sendBufferSize); err != nil {
		slog.Debug("failed to grow send buffer", "error", err)
	}

	interval := time.Second / time.Duration(s.cfg.UpdateRateHz)
	slog.Info("client streaming",
		"target", s.cfg.Target,
		"client_id", s.clientID,
		"rate_hz", s.cfg.UpdateRateHz,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	lastReport := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("client stopping", "packets_sent", sent)
			return nil
		case now := <-ticker.C:
			st := protocol.Neutral()
			if s.provider != nil {
				if sample, ok := s.provider.Sample(); ok {
					st = sample
				}
			}
			buf := protocol.Encode(st, s.clientID, s.seq, uint64(now.UnixNano()))
			if _, err := conn.Write(buf); err != nil {
				slog.Warn("send failed", "error", err)
			} else {
				sent++
			}
			s.seq++

			if now.Sub(lastReport) >= 5*time.Second {
				slog.Debug("client telemetry",
					"packets_sent", sent,
					"seq", s.seq,
				)
				lastReport = now
			}
		}
	}
}
