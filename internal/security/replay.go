package security

import "time"

// SequenceNewer reports whether seq is strictly newer than last under
// 16-bit wraparound comparison. A sequence is newer when the forward
// distance (seq-last) mod 65536 lands in [1, 32767]; this tolerates one
// wraparound cycle and rejects exact duplicates and stale reorders.
func SequenceNewer(seq, last uint16) bool {
	diff := seq - last
	return diff >= 1 && diff <= 32767
}

// timestampReject classifies a packet timestamp against the host clock.
// Returns RejectNone when the timestamp is fresh.
func timestampReject(pktNanos, nowNanos uint64, maxAge, maxFuture time.Duration) RejectReason {
	if nowNanos >= pktNanos {
		if time.Duration(nowNanos-pktNanos) > maxAge {
			return RejectStaleTimestamp
		}
		return RejectNone
	}
	if time.Duration(pktNanos-nowNanos) > maxFuture {
		return RejectFutureTimestamp
	}
	return RejectNone
}
