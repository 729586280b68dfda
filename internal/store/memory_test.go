package store

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, RawRecord{PeerID: "a", Timestamp: "t1", Balance: "1"}); err != nil {
		t.Fatalf("Append 失败: %v", err)
	}
	if err := s.Append(ctx, RawRecord{PeerID: "b", Timestamp: "t2", Balance: "2"}); err != nil {
		t.Fatalf("Append 失败: %v", err)
	}
	if err := s.Append(ctx, RawRecord{PeerID: "a", Timestamp: "t3", Balance: "3"}); err != nil {
		t.Fatalf("Append 失败: %v", err)
	}

	names, err := s.Series(ctx)
	if err != nil {
		t.Fatalf("Series 失败: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("序列列表不正确: %v", names)
	}

	records, err := s.ReadSeries(ctx, "a")
	if err != nil {
		t.Fatalf("ReadSeries 失败: %v", err)
	}
	if len(records) != 2 || records[0].Balance != "1" || records[1].Balance != "3" {
		t.Fatalf("记录不正确: %+v", records)
	}

	// mutating the returned slice must not touch stored state
	records[0].Balance = "mutated"
	again, _ := s.ReadSeries(ctx, "a")
	if again[0].Balance != "1" {
		t.Fatal("ReadSeries 应返回副本而非内部状态")
	}
}

func TestMemoryStoreUnknownSeries(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.ReadSeries(context.Background(), "missing"); err == nil {
		t.Fatal("未知序列应报错")
	}
}

func TestMemoryStoreRejectsEmptyPeer(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Append(context.Background(), RawRecord{Timestamp: "t", Balance: "1"}); err == nil {
		t.Fatal("peer id 为空应报错")
	}
}
