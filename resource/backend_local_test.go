package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	id, err := b.Create(1, "test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected non-zero id")
	}

	val, ok := b.Get(id)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	val, state, ok := b.Drop(id)
	if !ok {
		t.Fatal("Drop failed")
	}
	if val != "test value" || state != ScopeBound {
		t.Fatalf("Unexpected drop result %v %v", val, state)
	}

	if _, ok := b.Get(id); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
}

func TestLocalBackend_ZeroID(t *testing.T) {
	b := NewLocalBackend()

	if _, ok := b.Get(0); ok {
		t.Fatal("ID 0 must never resolve")
	}
	if _, _, ok := b.Drop(0); ok {
		t.Fatal("ID 0 must never drop")
	}
	if err := b.Transition(0, ScopeBound, Managed, 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Expected ErrInvalid, got %v", err)
	}
}

func TestLocalBackend_Transition(t *testing.T) {
	b := NewLocalBackend()
	id, _ := b.Create(4, 1)

	if err := b.Transition(id, Managed, Unmanaged, 0); !errors.Is(err, ErrState) {
		t.Fatalf("Expected ErrState, got %v", err)
	}
	if err := b.Transition(id, ScopeBound, Managed, 0); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if len(b.Owned(4)) != 0 {
		t.Fatal("Managed cell should leave the frame index")
	}

	state, frame, _ := b.State(id)
	if state != Managed || frame != 0 {
		t.Fatalf("Expected managed with no frame, got %v %d", state, frame)
	}
}

func TestLocalBackend_SlotReuse(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Create(1, 1)
	h2, _ := b.Create(1, 2)
	h3, _ := b.Create(1, 3)

	b.Drop(h2)
	b.Drop(h1)

	h4, _ := b.Create(1, 4)
	h5, _ := b.Create(1, 5)

	if h4 != h1 || h5 != h2 {
		t.Fatalf("Expected freed slots to be reused LIFO, got %d %d", h4, h5)
	}

	for _, id := range []ID{h3, h4, h5} {
		if _, ok := b.Get(id); !ok {
			t.Fatalf("id %d should be valid", id)
		}
	}
	if len(b.Owned(1)) != 3 {
		t.Fatalf("Expected 3 cells in frame 1, got %d", len(b.Owned(1)))
	}
}

func TestLocalBackend_Set(t *testing.T) {
	b := NewLocalBackend()
	id, _ := b.Create(1, "old")

	if !b.Set(id, "new") {
		t.Fatal("Set failed")
	}
	val, _ := b.Get(id)
	if val != "new" {
		t.Fatalf("Expected 'new', got %v", val)
	}
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, 1)
	d := &dropCounter{}
	b.Create(1, d)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d.count != 1 {
		t.Fatal("Close should drop live values")
	}

	_, err := b.Create(1, "test")
	if !errors.Is(err, ErrClosed) {
		t.Fatal("Expected ErrClosed after Close")
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id, _ := b.Create(FrameID(n%4+1), n)
			_ = b.Transition(id, ScopeBound, Managed, 0)
			b.Drop(id)
		}(i)
	}

	wg.Wait()

	if b.Len() != 0 {
		t.Fatalf("Expected empty backend, got %d", b.Len())
	}
}
