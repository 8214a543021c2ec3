package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupRedis(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedis(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connecting to test redis: %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs
}

func TestRedisStore_ListFIFO(t *testing.T) {
	rs := setupRedis(t)
	ctx := context.Background()
	key := "test:list"

	for _, v := range []string{"a", "b", "c"} {
		if err := rs.PushBack(ctx, key, []byte(v)); err != nil {
			t.Fatalf("PushBack: %v", err)
		}
	}

	n, err := rs.ListLen(ctx, key)
	if err != nil {
		t.Fatalf("ListLen: %v", err)
	}
	if n != 3 {
		t.Errorf("length: got %d, want 3", n)
	}

	var popped []string
	for {
		data, err := rs.PopFront(ctx, key)
		if err != nil {
			t.Fatalf("PopFront: %v", err)
		}
		if data == nil {
			break
		}
		popped = append(popped, string(data))
	}
	if len(popped) != 3 || popped[0] != "a" || popped[1] != "b" || popped[2] != "c" {
		t.Errorf("pop order: got %v, want [a b c]", popped)
	}
}

func TestRedisStore_PushFrontRestoresHead(t *testing.T) {
	rs := setupRedis(t)
	ctx := context.Background()
	key := "test:list"

	rs.PushBack(ctx, key, []byte("first"))
	rs.PushBack(ctx, key, []byte("second"))

	head, err := rs.PopFront(ctx, key)
	if err != nil {
		t.Fatalf("PopFront: %v", err)
	}
	if err := rs.PushFront(ctx, key, head); err != nil {
		t.Fatalf("PushFront: %v", err)
	}

	head, err = rs.PopFront(ctx, key)
	if err != nil {
		t.Fatalf("PopFront: %v", err)
	}
	if string(head) != "first" {
		t.Errorf("head after restore: got %q, want first", head)
	}
}

func TestRedisStore_PopFrontEmpty(t *testing.T) {
	rs := setupRedis(t)

	data, err := rs.PopFront(context.Background(), "test:empty")
	if err != nil {
		t.Fatalf("PopFront: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil for empty list, got %q", data)
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}
