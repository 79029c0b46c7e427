package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"market-pulse/internal/domain"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func TestRememberFetchesOnceWithinTTL(t *testing.T) {
	kv := newFakeRedis()
	c := NewJSONCache(kv, "macro:")
	calls := 0
	fetch := func(ctx context.Context) (float64, error) {
		calls++
		return 21.5, nil
	}

	for i := 0; i < 3; i++ {
		v, err := Remember(context.Background(), c, "vix", time.Hour, fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 21.5 {
			t.Fatalf("expected 21.5, got %v", v)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one upstream fetch, got %d", calls)
	}
	if kv.ttls["macro:vix"] != time.Hour {
		t.Fatalf("expected ttl to be passed through, got %v", kv.ttls["macro:vix"])
	}
}

func TestRememberFallsThroughOnCacheErrors(t *testing.T) {
	kv := newFakeRedis()
	kv.getErr = errors.New("down")
	kv.setErr = errors.New("down")
	c := NewJSONCache(kv, "")

	v, err := Remember(context.Background(), c, "k", time.Minute, func(ctx context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected fetched value despite cache errors, got %v %v", v, err)
	}
}

func TestRememberDoesNotCacheFetchErrors(t *testing.T) {
	kv := newFakeRedis()
	c := NewJSONCache(kv, "")
	boom := errors.New("boom")

	if _, err := Remember(context.Background(), c, "k", time.Minute, func(ctx context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(kv.data) != 0 {
		t.Fatalf("expected nothing cached")
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *JSONCache
	v, err := Remember(context.Background(), c, "k", time.Minute, func(ctx context.Context) (string, error) { return "x", nil })
	if err != nil || v != "x" {
		t.Fatalf("expected nil cache to call fetch, got %q %v", v, err)
	}
}

func TestLatestSnapshotsRoundTrip(t *testing.T) {
	kv := newFakeRedis()
	l := NewLatestSnapshots(kv, 0)
	price := 64000.0

	if err := l.Put(context.Background(), &domain.Snapshot{ID: "s1", Symbol: "btc", MarketSignals: domain.MarketSignals{Price: &price}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kv.ttls["snapshot:latest:BTC"] != LatestSnapshotTTL {
		t.Fatalf("expected default ttl under upper-case key")
	}

	got, err := l.Get(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "s1" || got.Price == nil || *got.Price != price {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	miss, err := l.Get(context.Background(), "ETH")
	if err != nil || miss != nil {
		t.Fatalf("expected clean miss, got %+v %v", miss, err)
	}
}
