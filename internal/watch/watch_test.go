package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pumbayo1/quiltracker/internal/alerting"
	"github.com/pumbayo1/quiltracker/internal/loader"
	"github.com/pumbayo1/quiltracker/internal/store"
)

type captureNotifier struct {
	notes []alerting.Notification
	err   error
}

func (c *captureNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	c.notes = append(c.notes, note)
	return c.err
}

type brokenStore struct {
	store.ObservationStore
}

func (brokenStore) Series(ctx context.Context) ([]string, error) {
	return nil, errors.New("listing failed")
}

func seed(t *testing.T, st store.ObservationStore, peer, ts, balance string) {
	t.Helper()
	if err := st.Append(context.Background(), store.RawRecord{PeerID: peer, Timestamp: ts, Balance: balance}); err != nil {
		t.Fatalf("写入样例失败: %v", err)
	}
}

func newWatchdog(st store.ObservationStore, notifier alerting.Notifier) *Watchdog {
	logger := zerolog.Nop()
	return New(Options{StaleAfter: time.Hour, AlertsOn: true}, nil, loader.New(st, logger), notifier, logger)
}

func TestCheckFlagsStalePeerOnce(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, "fresh", "2024-11-05T10:00:00Z", "10")
	seed(t, st, "stale", "2024-11-05T07:30:00Z", "155.372")

	notifier := &captureNotifier{}
	w := newWatchdog(st, notifier)

	now := time.Date(2024, 11, 5, 10, 30, 0, 0, time.UTC)
	if err := w.Check(context.Background(), now); err != nil {
		t.Fatalf("Check 失败: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("期望 1 条告警, 实际 %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if note.PeerID != "stale" {
		t.Fatalf("告警 peer 不正确: %s", note.PeerID)
	}
	if note.StaleFor != 3*time.Hour {
		t.Fatalf("期望失联 3h, 实际 %s", note.StaleFor)
	}
	if !note.LastBalance.Equal(decimal.RequireFromString("155.372")) {
		t.Fatalf("最后余额不正确: %s", note.LastBalance)
	}

	// second scan inside the same episode stays quiet
	if err := w.Check(context.Background(), now.Add(time.Minute)); err != nil {
		t.Fatalf("Check 失败: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("同一失联期不应重复告警, 实际 %d 条", len(notifier.notes))
	}
}

func TestCheckReArmsAfterRecovery(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, "a", "2024-11-05T07:00:00Z", "1")

	notifier := &captureNotifier{}
	w := newWatchdog(st, notifier)
	ctx := context.Background()

	now := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	if err := w.Check(ctx, now); err != nil {
		t.Fatalf("Check 失败: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("期望 1 条告警, 实际 %d", len(notifier.notes))
	}

	// the peer reports again
	seed(t, st, "a", "2024-11-05T10:05:00Z", "2")
	if err := w.Check(ctx, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("Check 失败: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("恢复后不应新增告警, 实际 %d 条", len(notifier.notes))
	}

	// and goes stale a second time
	if err := w.Check(ctx, now.Add(12*time.Hour)); err != nil {
		t.Fatalf("Check 失败: %v", err)
	}
	if len(notifier.notes) != 2 {
		t.Fatalf("再次失联应再告警一次, 实际 %d 条", len(notifier.notes))
	}
}

func TestCheckAlertsDisabled(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, "a", "2024-11-05T07:00:00Z", "1")

	notifier := &captureNotifier{}
	logger := zerolog.Nop()
	w := New(Options{StaleAfter: time.Hour, AlertsOn: false}, nil, loader.New(st, logger), notifier, logger)

	if err := w.Check(context.Background(), time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Check 失败: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("告警关闭时不应发送, 实际 %d 条", len(notifier.notes))
	}
}

func TestCheckPropagatesLoadErrors(t *testing.T) {
	w := newWatchdog(brokenStore{store.NewMemoryStore()}, &captureNotifier{})
	if err := w.Check(context.Background(), time.Now()); err == nil {
		t.Fatal("存储读取失败应向上返回")
	}
}

func TestRunWithoutScheduler(t *testing.T) {
	w := newWatchdog(store.NewMemoryStore(), &captureNotifier{})
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("未配置 scheduler 时 Run 应报错")
	}
}
