package locks

import "testing"

func TestGLT_AtMostOneOwnerPerSlot(t *testing.T) {
	g := NewGLT(4)
	if !g.Free(0) {
		t.Fatal("expected slot 0 free initially")
	}
	g.Acquire(0, 7)
	if g.Free(0) {
		t.Fatal("expected slot 0 owned after Acquire")
	}
	g.Release(0, 7)
	if !g.Free(0) {
		t.Fatal("expected slot 0 free after Release by owner")
	}
}

func TestGLT_ReleaseByNonOwnerIsNoop(t *testing.T) {
	g := NewGLT(4)
	g.Acquire(0, 7)
	g.Release(0, 99) // not the owner
	if g.Free(0) {
		t.Fatal("Release by non-owner must not clear the slot")
	}
}

func TestLLT_FIFOOrdering(t *testing.T) {
	l := NewLLT()
	leaf := uint64(42)
	if pos := l.EnqueueAndPos(leaf, 1); pos != 0 {
		t.Errorf("first enqueue pos = %d, want 0", pos)
	}
	if pos := l.EnqueueAndPos(leaf, 2); pos != 1 {
		t.Errorf("second enqueue pos = %d, want 1", pos)
	}
	if !l.AtHead(leaf, 1) {
		t.Error("expected tid 1 at head")
	}
	if l.AtHead(leaf, 2) {
		t.Error("tid 2 should not be at head")
	}
	l.Release(leaf, 1)
	if !l.AtHead(leaf, 2) {
		t.Error("expected tid 2 at head after release of tid 1")
	}
}

func TestLLT_ReenqueueReturnsExistingPosition(t *testing.T) {
	l := NewLLT()
	leaf := uint64(1)
	l.EnqueueAndPos(leaf, 1)
	l.EnqueueAndPos(leaf, 2)
	if pos := l.EnqueueAndPos(leaf, 1); pos != 0 {
		t.Errorf("re-enqueue of tid already queued returned pos %d, want 0", pos)
	}
}
