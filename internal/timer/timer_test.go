package timer

import "testing"

func sortedExpires(l *List) []int64 {
	var out []int64
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.Expire)
	}
	return out
}

func eqInt64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddKeepsAscendingOrder(t *testing.T) {
	l := New()
	for _, e := range []int64{30, 10, 20, 10, 40} {
		l.Add(&Node{Expire: e})
	}

	want := []int64{10, 10, 20, 30, 40}
	if got := sortedExpires(l); !eqInt64(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if l.Len() != 5 {
		t.Fatalf("len = %d want 5", l.Len())
	}
}

func TestDelIsConstantTimeAndUnlinks(t *testing.T) {
	l := New()
	a := &Node{Expire: 10}
	b := &Node{Expire: 20}
	c := &Node{Expire: 30}
	l.Add(a)
	l.Add(b)
	l.Add(c)

	l.Del(b)

	want := []int64{10, 30}
	if got := sortedExpires(l); !eqInt64(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d want 2", l.Len())
	}

	// Deleting again (already unlinked) is a harmless no-op.
	l.Del(b)
	if l.Len() != 2 {
		t.Fatalf("double Del changed len to %d", l.Len())
	}
}

func TestAdjustReinsertsWhenExpiryGrowsPastNeighbor(t *testing.T) {
	l := New()
	a := &Node{Expire: 10}
	b := &Node{Expire: 20}
	c := &Node{Expire: 30}
	l.Add(a)
	l.Add(b)
	l.Add(c)

	a.Expire = 25 // activity observed: extend a's expiry past b's
	l.Adjust(a)

	want := []int64{20, 25, 30}
	if got := sortedExpires(l); !eqInt64(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestAdjustKeepsPlaceWhenStillSorted(t *testing.T) {
	l := New()
	a := &Node{Expire: 10}
	b := &Node{Expire: 20}
	l.Add(a)
	l.Add(b)

	a.Expire = 15 // still <= b.Expire, no reinsertion needed
	l.Adjust(a)

	want := []int64{15, 20}
	if got := sortedExpires(l); !eqInt64(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTickReapsExpiredInAscendingOrder(t *testing.T) {
	l := New()
	var fired []int64
	mk := func(e int64) *Node {
		return &Node{Expire: e, OnExpire: func(n *Node) { fired = append(fired, n.Expire) }}
	}
	l.Add(mk(10))
	l.Add(mk(20))
	l.Add(mk(30))

	l.Tick(20)

	want := []int64{10, 20}
	if !eqInt64(fired, want) {
		t.Fatalf("fired %v want %v", fired, want)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d want 1", l.Len())
	}
	if l.head.Expire != 30 {
		t.Fatalf("remaining head.Expire = %d want 30", l.head.Expire)
	}
}
