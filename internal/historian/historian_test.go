// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skirmish-game/skirmish/internal/cache"
)

// TestSpendEventQueueRoundTrip publishes one spend record through the same
// path the ledger uses, then pops it back off the queue and checks nothing
// was lost in transit. Requires a reachable Redis.
func TestSpendEventQueueRoundTrip(t *testing.T) {
	if os.Getenv("REDIS_ADDR") == "" {
		t.Skip("REDIS_ADDR not set; skipping redis integration test")
	}
	if err := cache.ConnectRedis(); err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	defer cache.Rdb.Close()

	// A throwaway queue keeps a concurrently running historian from
	// stealing the record.
	queue := "historian-test-" + uuid.NewString()
	t.Setenv("HISTORIAN_QUEUE_NAME", queue)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	target := uuid.New()
	want := cache.SpendEvent{
		AccountID: uuid.New(),
		Action:    "attack",
		TargetID:  &target,
		Spent:     true,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := cache.PublishSpendEvent(ctx, want); err != nil {
		t.Fatalf("failed to publish spend event: %v", err)
	}

	res, err := cache.Rdb.BLPop(ctx, 2*time.Second, queue).Result()
	if err != nil {
		t.Fatalf("failed to pop spend event: %v", err)
	}
	if len(res) < 2 {
		t.Fatalf("unexpected BLPop result: %v", res)
	}

	var got cache.SpendEvent
	if err := json.Unmarshal([]byte(res[1]), &got); err != nil {
		t.Fatalf("failed to decode spend event: %v", err)
	}
	if got.AccountID != want.AccountID || got.Action != want.Action || !got.Spent {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if got.TargetID == nil || *got.TargetID != target {
		t.Fatalf("target id lost in transit: %v", got.TargetID)
	}
}

// A full end-to-end test would launch the historian daemon against live
// Redis and Postgres, push a batch of records, and assert the rows land in
// credit_events.
func TestHistorianEndToEnd(t *testing.T) {
	t.Skip("requires the historian daemon running against live Redis and Postgres")
}
