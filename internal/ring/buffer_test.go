package ring

import (
	"reflect"
	"testing"
)

func TestBufferEviction(t *testing.T) {
	b := New[int](3)
	for _, v := range []int{1, 2, 3, 4} {
		b.Push(v)
	}
	if got := b.Peek(); !reflect.DeepEqual(got, []int{2, 3, 4}) {
		t.Fatalf("got %v, want [2 3 4]", got)
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
}

func TestBufferDrain(t *testing.T) {
	b := New[string](5)
	b.Push("a")
	b.Push("b")
	got := b.Drain()
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("got %v", got)
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after drain, len=%d", b.Len())
	}
}

func TestBufferDrainWhere(t *testing.T) {
	b := New[int](10)
	for _, v := range []int{1, 2, 3, 4, 5} {
		b.Push(v)
	}
	even := func(v int) bool { return v%2 == 0 }
	matched := b.DrainWhere(even)
	if !reflect.DeepEqual(matched, []int{2, 4}) {
		t.Fatalf("matched = %v, want [2 4]", matched)
	}
	if !reflect.DeepEqual(b.Peek(), []int{1, 3, 5}) {
		t.Fatalf("retained = %v, want [1 3 5]", b.Peek())
	}
}

func TestBufferCapacityFloor(t *testing.T) {
	b := New[int](0)
	if b.Cap() != 1 {
		t.Fatalf("cap = %d, want 1", b.Cap())
	}
}
