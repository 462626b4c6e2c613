package storage

import (
	"context"
	"testing"
	"time"
)

func TestRedisDeduperAddRemove(t *testing.T) {
	mr, client := newTestRedis(t)
	d := NewRedisDeduper(client, time.Hour)
	ctx := context.Background()

	added, err := d.Add(ctx, "collect", "evt-1")
	if err != nil || !added {
		t.Fatalf("first add: %v, %v", added, err)
	}
	added, err = d.Add(ctx, "collect", "evt-1")
	if err != nil || added {
		t.Fatalf("duplicate add should report false: %v, %v", added, err)
	}
	if ttl := mr.TTL("dedupe:collect:evt-1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	if err := d.Remove(ctx, "collect", "evt-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added, err = d.Add(ctx, "collect", "evt-1")
	if err != nil || !added {
		t.Fatalf("add after remove: %v, %v", added, err)
	}
}
