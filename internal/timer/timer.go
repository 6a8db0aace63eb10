/*
 * MIT License
 *
 * Copyright (c) 2019-2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package timer implements the idle-connection timer wheel: a
// sorted-ascending doubly linked list of expiry timers, reaped on each
// alarm tick. The list itself carries no internal locking: callers must
// serialize every mutation (Add, Adjust, Del, Tick). The reactor does so
// by holding its own mutex around each call, which it makes both from its
// event loop and from the goroutines awaiting worker completions.
package timer

// Node is one timer entry: an absolute expiry (Unix seconds), the callback
// invoked by Tick when it fires, and list linkage. Only the List that
// links a node changes its linkage; callers may hold a pointer to the node
// (the reactor keeps one per connection, and Conn points back), and the
// garbage collector handles that cycle.
type Node struct {
	Expire   int64
	OnExpire func(n *Node)

	// Conn is an opaque back-pointer the caller may use to reach the
	// connection this timer guards; the list never dereferences it.
	Conn any

	prev, next *Node
	list       *List
}

// List is a sorted-ascending (by Expire) doubly linked list of timer nodes.
type List struct {
	head, tail *Node
	size       int
}

// New returns an empty timer list.
func New() *List {
	return &List{}
}

// Len returns the number of timers currently linked.
func (l *List) Len() int { return l.size }

// Add inserts n at the first position whose Expire is >= n.Expire,
// keeping the list sorted ascending. O(n).
func (l *List) Add(n *Node) {
	n.list = l
	n.prev, n.next = nil, nil

	if l.head == nil {
		l.head, l.tail = n, n
		l.size++
		return
	}

	for cur := l.head; cur != nil; cur = cur.next {
		if cur.Expire >= n.Expire {
			l.insertBefore(n, cur)
			l.size++
			return
		}
	}

	l.insertAfter(n, l.tail)
	l.size++
}

// Adjust is called when n.Expire has been increased (the connection saw
// activity). If n is still sorted in place relative to its next neighbor it
// stays put; otherwise it is unlinked and re-inserted starting the scan
// from its former next node.
func (l *List) Adjust(n *Node) {
	if n.list != l {
		return
	}
	if n.next == nil || n.Expire <= n.next.Expire {
		return
	}

	start := n.next
	l.unlink(n)
	l.size--

	for cur := start; cur != nil; cur = cur.next {
		if cur.Expire >= n.Expire {
			l.insertBefore(n, cur)
			n.list = l
			l.size++
			return
		}
	}
	l.insertAfter(n, l.tail)
	n.list = l
	l.size++
}

// Del unlinks n in O(1). It is a no-op if n is not currently in this list.
func (l *List) Del(n *Node) {
	if n.list != l {
		return
	}
	l.unlink(n)
	n.list = nil
	n.prev, n.next = nil, nil
	l.size--
}

// Tick pops and invokes every node whose Expire <= now, in ascending
// order, unlinking each before its callback runs so a callback that
// re-adds a timer (or closes a connection whose Del races with Tick)
// never observes a half-removed node.
func (l *List) Tick(now int64) {
	for l.head != nil && l.head.Expire <= now {
		n := l.head
		l.unlink(n)
		n.list = nil
		n.prev, n.next = nil, nil
		l.size--

		if n.OnExpire != nil {
			n.OnExpire(n)
		}
	}
}

func (l *List) insertBefore(n, at *Node) {
	n.next = at
	n.prev = at.prev
	if at.prev != nil {
		at.prev.next = n
	} else {
		l.head = n
	}
	at.prev = n
}

func (l *List) insertAfter(n, at *Node) {
	n.prev = at
	n.next = at.next
	if at.next != nil {
		at.next.prev = n
	} else {
		l.tail = n
	}
	at.next = n
}

func (l *List) unlink(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
}
