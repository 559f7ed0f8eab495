package index

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestNewMemoryIndex(t *testing.T) {
	index := NewMemoryIndex()
	if index == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	ids, err := index.IDs(context.Background(), "signature")
	if err != nil {
		t.Fatalf("IDs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("NewMemoryIndex() should start empty, got %v", len(ids))
	}
	if !index.GetLastWrite().IsZero() {
		t.Errorf("GetLastWrite() should be zero before any write")
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	if err := index.Put(ctx, "signature", "yara_a_1", []byte(`{"name":"a"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, ok, err := index.Get(ctx, "signature", "yara_a_1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want found", ok, err)
	}
	if string(data) != `{"name":"a"}` {
		t.Errorf("Get() = %s", data)
	}

	if _, ok, _ := index.Get(ctx, "service", "yara_a_1"); ok {
		t.Errorf("collections must be isolated")
	}
	if index.GetLastWrite().IsZero() {
		t.Errorf("GetLastWrite() not updated by Put")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_ = index.Put(ctx, "c", "id", []byte("abc"))

	data, _, _ := index.Get(ctx, "c", "id")
	data[0] = 'z'

	again, _, _ := index.Get(ctx, "c", "id")
	if string(again) != "abc" {
		t.Errorf("stored document mutated through returned slice: %s", again)
	}
}

func TestMGetKeepsPositions(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_ = index.Put(ctx, "c", "a", []byte("1"))
	_ = index.Put(ctx, "c", "c", []byte("3"))

	got, err := index.MGet(ctx, "c", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("MGet() error = %v", err)
	}
	if len(got) != 3 || string(got[0]) != "1" || got[1] != nil || string(got[2]) != "3" {
		t.Errorf("MGet() = %q", got)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_ = index.Put(ctx, "c", "a", []byte("1"))

	ok, err := index.Delete(ctx, "c", "a")
	if err != nil || !ok {
		t.Fatalf("Delete() = %v, %v, want true", ok, err)
	}
	ok, _ = index.Delete(ctx, "c", "a")
	if ok {
		t.Errorf("second Delete() should report false")
	}
	if ids, _ := index.IDs(ctx, "c"); len(ids) != 0 {
		t.Errorf("IDs() = %v, want none", ids)
	}
}

func TestIDsSorted(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	for _, id := range []string{"b", "c", "a"} {
		_ = index.Put(ctx, "c", id, []byte("{}"))
	}
	ids, _ := index.IDs(ctx, "c")
	if fmt.Sprint(ids) != "[a b c]" {
		t.Errorf("IDs() = %v, want [a b c]", ids)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = index.Put(ctx, "c", fmt.Sprintf("id-%d", i), []byte("{}"))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = index.IDs(ctx, "c")
		}()
	}
	wg.Wait()

	if ids, _ := index.IDs(ctx, "c"); len(ids) != 50 {
		t.Errorf("len(IDs()) = %d, want 50", len(ids))
	}
}
