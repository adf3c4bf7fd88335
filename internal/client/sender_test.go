package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/uozer7050/coopad/internal/config"
	"github.com/uozer7050/coopad/internal/protocol"
)

type fixedProvider struct {
	st protocol.GamepadState
	ok bool
}

func (p fixedProvider) Sample() (protocol.GamepadState, bool) { return p.st, p.ok }

func collectPackets(t *testing.T, provider StateProvider, want int) []protocol.Packet {
	t.Helper()

	lconn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lconn.Close()

	s := New(config.ClientConfig{
		Target:       lconn.LocalAddr().String(),
		UpdateRateHz: 90,
	}, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	buf := make([]byte, 2048)
	var pkts []protocol.Packet
	for len(pkts) < want {
		lconn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := lconn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("receive: %v (got %d packets)", err, len(pkts))
		}
		pkt, err := protocol.Decode(buf[:n])
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		pkts = append(pkts, pkt)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender did not stop")
	}
	return pkts
}

func TestSender_NeutralHeartbeats(t *testing.T) {
	pkts := collectPackets(t, nil, 5)

	neutral := protocol.Neutral()
	for i, p := range pkts {
		if p.State != neutral {
			t.Errorf("packet %d: state %+v, want neutral", i, p.State)
		}
	}
}

func TestSender_StreamsProvidedState(t *testing.T) {
	st := protocol.GamepadState{Buttons: protocol.ButtonA | protocol.ButtonStart, LeftX: -5000}
	pkts := collectPackets(t, fixedProvider{st: st, ok: true}, 5)

	for i, p := range pkts {
		if p.State != st {
			t.Errorf("packet %d: state %+v, want %+v", i, p.State, st)
		}
	}
}

func TestSender_SequenceAndIdentity(t *testing.T) {
	pkts := collectPackets(t, nil, 6)

	id := pkts[0].ClientID
	if id == 0 {
		t.Error("random client id should be nonzero")
	}
	for i := 1; i < len(pkts); i++ {
		if pkts[i].ClientID != id {
			t.Errorf("packet %d: client id changed %d -> %d", i, id, pkts[i].ClientID)
		}
		diff := pkts[i].Sequence - pkts[i-1].Sequence
		if diff < 1 || diff > 32767 {
			t.Errorf("packet %d: sequence not strictly newer (%d then %d)", i, pkts[i-1].Sequence, pkts[i].Sequence)
		}
	}
}

func TestSender_ConfiguredClientID(t *testing.T) {
	s := New(config.ClientConfig{Target: "127.0.0.1:7777", UpdateRateHz: 60, ClientID: 42}, nil)
	if s.ClientID() != 42 {
		t.Errorf("client id = %d, want 42", s.ClientID())
	}
}

func TestSender_InvalidTarget(t *testing.T) {
	s := New(config.ClientConfig{Target: "not a target", UpdateRateHz: 60}, nil)
	if err := s.Run(context.Background()); err == nil {
		t.Error("expected error for invalid target")
	}
}
