package security

import (
	"net/netip"
	"sync"
	"time"
)

// Config holds the admission engine settings. Values are validated by the
// config package before they reach here.
type Config struct {
	RateLimitMax       float64       // packets/s per client
	RateLimitBurst     int           // bucket capacity, shared by both bucket kinds
	IPRateLimitMax     float64       // packets/s per source address
	MaxClientsPerIP    int           // distinct client ids per address
	AutoBlockThreshold int           // violations before auto-block
	BlockDuration      time.Duration // auto-block expiry
	MaxTimestampAge    time.Duration // replay guard: oldest acceptable packet
	MaxTimestampFuture time.Duration // replay guard: clock skew allowance
	EnableWhitelist    bool
	WhitelistIPs       []netip.Addr
	ClientRetention    time.Duration // sweep eviction threshold
	EventLogSize       int           // bounded event ring capacity
}

// RejectReason classifies why a packet was refused admission. RejectNone
// means the packet was accepted.
type RejectReason string

const (
	RejectNone              RejectReason = ""
	RejectWhitelist         RejectReason = "not_whitelisted"
	RejectIPBlocked         RejectReason = "ip_blocked"
	RejectClientBlocked     RejectReason = "client_blocked"
	RejectConnectionLimit   RejectReason = "connection_limit"
	RejectClientRate        RejectReason = "client_rate_limit"
	RejectIPRate            RejectReason = "ip_rate_limit"
	RejectStaleTimestamp    RejectReason = "stale_timestamp"
	RejectFutureTimestamp   RejectReason = "future_timestamp"
	RejectDuplicateSequence RejectReason = "duplicate_sequence"
)

// ClientRecord tracks one observed client id. Mutated only by the receive
// pipeline; snapshot accessors copy fields under the registry lock.
type ClientRecord struct {
	ClientID     uint32
	Addr         netip.Addr
	FirstSeen    time.Time
	LastSeen     time.Time
	PacketCount  uint64
	Violations   int
	BlockedUntil time.Time

	lastSeq  uint16
	hasSeq   bool
	lastPkTS uint64
	bucket   *Bucket
}

// AddressRecord tracks one source address.
type AddressRecord struct {
	BlockedUntil time.Time
	Violations   int

	clients  map[uint32]struct{}
	bucket   *Bucket
	lastSeen time.Time
}

// Registry owns the per-client and per-address admission state. All maps
// sit behind a single mutex held only for short critical sections; nothing
// under the lock touches the network.
type Registry struct {
	cfg       Config
	whitelist map[netip.Addr]struct{}

	mu      sync.Mutex
	clients map[uint32]*ClientRecord
	addrs   map[netip.Addr]*AddressRecord
	events  *eventRing
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.EventLogSize <= 0 {
		cfg.EventLogSize = 1000
	}
	wl := make(map[netip.Addr]struct{}, len(cfg.WhitelistIPs))
	for _, ip := range cfg.WhitelistIPs {
		wl[ip] = struct{}{}
	}
	return &Registry{
		cfg:       cfg,
		whitelist: wl,
		clients:   make(map[uint32]*ClientRecord),
		addrs:     make(map[netip.Addr]*AddressRecord),
		events:    newEventRing(cfg.EventLogSize),
	}
}

// Check runs the full admission sequence for one decoded packet:
// whitelist, address block, client block, per-address client cap, rate
// limits (client then address), then the replay guard. On acceptance the
// client's freshness state is advanced. Exactly one event and at most one
// violation increment are produced per call.
func (r *Registry) Check(clientID uint32, addr netip.Addr, sequence uint16, timestamp uint64, now time.Time) RejectReason {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.EnableWhitelist {
		if _, ok := r.whitelist[addr]; !ok {
			r.pushEvent(EventWhitelistReject, addr, clientID, "", now)
			return RejectWhitelist
		}
	}

	ar := r.addrs[addr]
	if ar != nil && now.Before(ar.BlockedUntil) {
		r.pushEvent(EventBlockedIP, addr, clientID, "", now)
		return RejectIPBlocked
	}

	cr := r.clients[clientID]
	if cr != nil {
		if now.Before(cr.BlockedUntil) {
			r.pushEvent(EventBlockedClient, addr, clientID, "", now)
			return RejectClientBlocked
		}
		if !cr.BlockedUntil.IsZero() {
			// Block expired: back to active with a clean slate.
			cr.BlockedUntil = time.Time{}
			cr.Violations = 0
		}
	}

	// New clients and known ids arriving from a new source address both
	// need membership in the address record, subject to the per-address
	// cap. A roaming id rebinds to the new address; its bucket, violation
	// count and sequence state follow the id, so roamed packets still face
	// the replay guard.
	if cr == nil || cr.Addr != addr || ar == nil {
		if ar != nil && len(ar.clients) >= r.cfg.MaxClientsPerIP {
			ar.Violations++
			r.pushEvent(EventConnectionLimit, addr, clientID, "", now)
			return RejectConnectionLimit
		}
		if ar == nil {
			ar = &AddressRecord{
				clients: make(map[uint32]struct{}),
				bucket:  NewBucket(r.cfg.IPRateLimitMax, r.cfg.RateLimitBurst),
			}
			r.addrs[addr] = ar
		}
		if cr == nil {
			cr = &ClientRecord{
				ClientID:  clientID,
				FirstSeen: now,
				bucket:    NewBucket(r.cfg.RateLimitMax, r.cfg.RateLimitBurst),
			}
			r.clients[clientID] = cr
		} else if old := r.addrs[cr.Addr]; old != nil {
			delete(old.clients, clientID)
		}
		cr.Addr = addr
		ar.clients[clientID] = struct{}{}
	}

	if !cr.bucket.TryConsume(1, now) {
		r.violation(cr, "client_rate_limit", now)
		return RejectClientRate
	}
	if !ar.bucket.TryConsume(1, now) {
		r.violation(cr, "ip_rate_limit", now)
		return RejectIPRate
	}

	if reason := timestampReject(timestamp, uint64(now.UnixNano()), r.cfg.MaxTimestampAge, r.cfg.MaxTimestampFuture); reason != RejectNone {
		r.violation(cr, string(reason), now)
		return reason
	}
	if cr.hasSeq && !SequenceNewer(sequence, cr.lastSeq) {
		r.violation(cr, string(RejectDuplicateSequence), now)
		return RejectDuplicateSequence
	}

	cr.lastSeq = sequence
	cr.hasSeq = true
	cr.lastPkTS = timestamp
	cr.LastSeen = now
	cr.PacketCount++
	ar.lastSeen = now
	return RejectNone
}

// violation increments the client's counter and trips the auto-block once
// the threshold is reached. The tripping violation is logged as the block
// event rather than a plain violation, keeping one event per packet.
func (r *Registry) violation(cr *ClientRecord, detail string, now time.Time) {
	cr.Violations++
	if cr.Violations >= r.cfg.AutoBlockThreshold && cr.BlockedUntil.IsZero() {
		cr.BlockedUntil = now.Add(r.cfg.BlockDuration)
		r.pushEvent(EventAutoBlockClient, cr.Addr, cr.ClientID, detail, now)
		return
	}
	r.pushEvent(EventViolation, cr.Addr, cr.ClientID, detail, now)
}

func (r *Registry) pushEvent(kind EventKind, addr netip.Addr, clientID uint32, detail string, now time.Time) {
	r.events.push(Event{Time: now, Kind: kind, Addr: addr, ClientID: clientID, Detail: detail})
}

// AdmitAddress screens a raw source address before any decoding: the
// whitelist and any active address block. Traffic refused here never
// reaches the codec and never mints a record.
func (r *Registry) AdmitAddress(addr netip.Addr, now time.Time) RejectReason {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.EnableWhitelist {
		if _, ok := r.whitelist[addr]; !ok {
			r.pushEvent(EventWhitelistReject, addr, 0, "", now)
			return RejectWhitelist
		}
	}
	if ar := r.addrs[addr]; ar != nil && now.Before(ar.BlockedUntil) {
		r.pushEvent(EventBlockedIP, addr, 0, "", now)
		return RejectIPBlocked
	}
	return RejectNone
}

// AddressViolation records a violation that cannot be attributed to any
// client, such as an oversized datagram that was never decoded.
func (r *Registry) AddressViolation(addr netip.Addr, detail string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ar := r.addrs[addr]
	if ar == nil {
		ar = &AddressRecord{
			clients: make(map[uint32]struct{}),
			bucket:  NewBucket(r.cfg.IPRateLimitMax, r.cfg.RateLimitBurst),
		}
		r.addrs[addr] = ar
	}
	ar.Violations++
	ar.lastSeen = now
	r.pushEvent(EventViolation, addr, 0, detail, now)
}

// BlockIP manually blocks an address for the given duration (the
// configured block duration when d <= 0). Idempotent.
func (r *Registry) BlockIP(addr netip.Addr, d time.Duration, now time.Time) {
	if d <= 0 {
		d = r.cfg.BlockDuration
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ar := r.addrs[addr]
	if ar == nil {
		ar = &AddressRecord{
			clients: make(map[uint32]struct{}),
			bucket:  NewBucket(r.cfg.IPRateLimitMax, r.cfg.RateLimitBurst),
		}
		r.addrs[addr] = ar
	}
	ar.BlockedUntil = now.Add(d)
	r.pushEvent(EventManualBlock, addr, 0, d.String(), now)
}

// UnblockIP lifts a manual or automatic address block. Idempotent; a
// no-op on addresses that are not blocked.
func (r *Registry) UnblockIP(addr netip.Addr, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ar := r.addrs[addr]
	if ar == nil || ar.BlockedUntil.IsZero() {
		return
	}
	ar.BlockedUntil = time.Time{}
	r.pushEvent(EventManualUnblock, addr, 0, "", now)
}

// Sweep evicts records idle past the retention window and clears expired
// blocks. Runs on a fixed timer independent of the receive path; it holds
// the lock once for the whole pass, which stays cheap because the maps are
// bounded by exactly this eviction. Returns evicted client and address
// counts.
func (r *Registry) Sweep(now time.Time) (clientsEvicted, addrsEvicted int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.cfg.ClientRetention)

	for id, cr := range r.clients {
		if !cr.BlockedUntil.IsZero() && now.Before(cr.BlockedUntil) {
			continue
		}
		if cr.LastSeen.Before(cutoff) {
			if ar := r.addrs[cr.Addr]; ar != nil {
				delete(ar.clients, id)
			}
			delete(r.clients, id)
			clientsEvicted++
		}
	}

	for addr, ar := range r.addrs {
		if !ar.BlockedUntil.IsZero() && !now.Before(ar.BlockedUntil) {
			ar.BlockedUntil = time.Time{}
		}
		if len(ar.clients) == 0 && ar.BlockedUntil.IsZero() && ar.lastSeen.Before(cutoff) {
			delete(r.addrs, addr)
			addrsEvicted++
		}
	}
	return clientsEvicted, addrsEvicted
}

// Stats is a point-in-time summary for telemetry and status queries.
type Stats struct {
	TotalClients   int `json:"total_clients"`
	ActiveClients  int `json:"active_clients"`
	BlockedClients int `json:"blocked_clients"`
	BlockedIPs     int `json:"blocked_ips"`
	TrackedIPs     int `json:"tracked_ips"`
	RecentEvents   int `json:"recent_events"`
}

// activeWindow is how recently a client must have been seen to count as
// active in Stats.
const activeWindow = time.Minute

// Snapshot returns aggregate counts. Safe to call concurrently with the
// receive pipeline.
func (r *Registry) Snapshot(now time.Time) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{
		TotalClients: len(r.clients),
		TrackedIPs:   len(r.addrs),
		RecentEvents: r.events.count,
	}
	for _, cr := range r.clients {
		if now.Sub(cr.LastSeen) < activeWindow {
			st.ActiveClients++
		}
		if now.Before(cr.BlockedUntil) {
			st.BlockedClients++
		}
	}
	for _, ar := range r.addrs {
		if now.Before(ar.BlockedUntil) {
			st.BlockedIPs++
		}
	}
	return st
}

// ClientInfo is a copy of one client record for status displays.
type ClientInfo struct {
	ClientID    uint32     `json:"client_id"`
	Addr        netip.Addr `json:"addr"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	PacketCount uint64     `json:"packet_count"`
	Violations  int        `json:"violations"`
	Blocked     bool       `json:"blocked"`
}

// Clients returns copies of all client records.
func (r *Registry) Clients(now time.Time) []ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ClientInfo, 0, len(r.clients))
	for _, cr := range r.clients {
		out = append(out, ClientInfo{
			ClientID:    cr.ClientID,
			Addr:        cr.Addr,
			FirstSeen:   cr.FirstSeen,
			LastSeen:    cr.LastSeen,
			PacketCount: cr.PacketCount,
			Violations:  cr.Violations,
			Blocked:     now.Before(cr.BlockedUntil),
		})
	}
	return out
}

// RecentEvents returns up to limit most recent security events, oldest
// first.
func (r *Registry) RecentEvents(limit int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events.recent(limit)
}
