package gistcache

import (
	"fmt"
	"net/http"
)

const cacheStatusName = "Gist-Cache"

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache did not contain a response for the key.
	FwdReasonUriMiss CacheStatusFwdReason = "uri-miss"

	// The cache contained a response for the key, but it was stale.
	FwdReasonStale CacheStatusFwdReason = "stale"
)

// CacheStatus describes how a request was handled, in the vocabulary of the
// Cache-Status response header field (RFC 9211).
type CacheStatus struct {
	Status    CacheStatusStatus
	FwdReason CacheStatusFwdReason
	// Upstream status code, zero if no response was received.
	FwdStatus int
	// Remaining freshness in seconds, for hits.
	TimeToLive int
	Stored     bool
	Collapsed  bool
}

func (cs *CacheStatus) Hit() {
	cs.Status = CacheStatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.Status = CacheStatusFwd
	cs.FwdReason = reason
}

func (cs CacheStatus) String() string {
	if cs.Status == CacheStatusHit {
		return fmt.Sprintf("%s; hit; ttl=%d", cacheStatusName, cs.TimeToLive)
	}
	status := fmt.Sprintf("%s; fwd=%s", cacheStatusName, cs.FwdReason)
	if cs.FwdStatus != 0 {
		status = fmt.Sprintf("%s; fwd-status=%d", status, cs.FwdStatus)
	}
	if cs.Stored {
		status += "; stored"
	}
	if cs.Collapsed {
		status += "; collapsed"
	}
	return status
}

func writeCacheStatus(w http.ResponseWriter, cs CacheStatus) {
	w.Header().Set("Cache-Status", cs.String())
}
