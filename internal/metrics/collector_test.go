package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollectorDefaults(t *testing.T) {
	c, err := NewCollector(nil)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	if c.config.Namespace != "dropboxfs" {
		t.Errorf("Namespace = %s, want dropboxfs", c.config.Namespace)
	}
}

func TestDisabledCollectorIsNoOp(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	// None of these should panic on a disabled collector.
	c.RecordOperation("getattr", time.Millisecond, true)
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordRemoteCall("download", nil)
	c.SetOpenHandles(3)

	if err := c.Start(context.Background()); err != nil {
		t.Errorf("Start on disabled collector: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop on disabled collector: %v", err)
	}
}

func TestRecordOperation(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	c.RecordOperation("getattr", 5*time.Millisecond, true)
	c.RecordOperation("getattr", 5*time.Millisecond, true)
	c.RecordOperation("release", time.Second, false)

	got := testutil.ToFloat64(c.operationCounter.WithLabelValues("getattr", "success"))
	if got != 2 {
		t.Errorf("getattr success count = %v, want 2", got)
	}
	got = testutil.ToFloat64(c.operationCounter.WithLabelValues("release", "error"))
	if got != 1 {
		t.Errorf("release error count = %v, want 1", got)
	}
}

func TestRecordCacheOutcomes(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()

	if got := testutil.ToFloat64(c.cacheCounter.WithLabelValues("hit")); got != 2 {
		t.Errorf("hit count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cacheCounter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss count = %v, want 1", got)
	}
}

func TestRecordRemoteCall(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	c.RecordRemoteCall("upload", nil)
	c.RecordRemoteCall("upload", errors.New("boom"))

	if got := testutil.ToFloat64(c.remoteCounter.WithLabelValues("upload", "success")); got != 1 {
		t.Errorf("upload success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.remoteCounter.WithLabelValues("upload", "error")); got != 1 {
		t.Errorf("upload error count = %v, want 1", got)
	}
}
