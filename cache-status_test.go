package gistcache

import "testing"

func TestCacheStatusString(t *testing.T) {
	var cs CacheStatus
	cs.Forward(FwdReasonUriMiss)
	if s := cs.String(); s != "Gist-Cache; fwd=uri-miss" {
		t.Fatalf("Cache status is %s", s)
	}
	cs.FwdStatus = 200
	cs.Stored = true
	cs.Collapsed = true
	if s := cs.String(); s != "Gist-Cache; fwd=uri-miss; fwd-status=200; stored; collapsed" {
		t.Fatalf("Cache status is %s", s)
	}
}

func TestCacheStatusHit(t *testing.T) {
	var cs CacheStatus
	cs.Forward(FwdReasonStale)
	cs.Hit()
	cs.TimeToLive = 42
	if s := cs.String(); s != "Gist-Cache; hit; ttl=42" {
		t.Fatalf("Cache status is %s", s)
	}
}
