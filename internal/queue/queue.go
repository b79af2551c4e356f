// Package queue implements the bounded FIFO backing each room.
//
// The queue is not safe for concurrent use; the owning room serializes all
// access through its mailbox.
package queue

import (
	"errors"
	"math/rand"

	"github.com/audioroom/maestro/internal/track"
)

var (
	// ErrFull is returned when an insert would exceed the configured capacity.
	ErrFull = errors.New("queue is full")

	// ErrInvalidPage is returned when a requested page is outside [1, totalPages].
	ErrInvalidPage = errors.New("page out of range")
)

// Queue is an ordered collection of tracks with a hard capacity.
type Queue struct {
	items    []track.Track
	capacity int
}

// BulkReport accounts for a bulk insert: accepted items keep their relative
// order, rejected items are attributed to the playlist cap or the capacity.
type BulkReport struct {
	Accepted              int
	RejectedByPlaylistCap int
	RejectedByCapacity    int
}

// New creates a queue holding at most capacity items.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{capacity: capacity}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Capacity returns the configured maximum size.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Insert appends a track, rejecting it with ErrFull at capacity.
func (q *Queue) Insert(t track.Track) error {
	if len(q.items) >= q.capacity {
		return ErrFull
	}
	q.items = append(q.items, t)
	return nil
}

// PushFront inserts a track at the head of the queue. It deliberately ignores
// the capacity so that a track-looped item can always reclaim the slot it
// just vacated.
func (q *Queue) PushFront(t track.Track) {
	q.items = append([]track.Track{t}, q.items...)
}

// BulkInsert truncates the input to playlistCap, then inserts each remaining
// track individually, counting capacity rejections.
func (q *Queue) BulkInsert(tracks []track.Track, playlistCap int) BulkReport {
	var rep BulkReport
	if playlistCap > 0 && len(tracks) > playlistCap {
		rep.RejectedByPlaylistCap = len(tracks) - playlistCap
		tracks = tracks[:playlistCap]
	}
	for _, t := range tracks {
		if err := q.Insert(t); err != nil {
			rep.RejectedByCapacity++
			continue
		}
		rep.Accepted++
	}
	return rep
}

// PopFront removes and returns the head of the queue.
func (q *Queue) PopFront() (track.Track, bool) {
	if len(q.items) == 0 {
		return track.Track{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// Remove deletes the item at the given 1-based position.
func (q *Queue) Remove(pos int) (track.Track, bool) {
	if pos < 1 || pos > len(q.items) {
		return track.Track{}, false
	}
	t := q.items[pos-1]
	q.items = append(q.items[:pos-1], q.items[pos:]...)
	return t, true
}

// Move relocates the item at 1-based position from to position to.
func (q *Queue) Move(from, to int) (track.Track, bool) {
	n := len(q.items)
	if from < 1 || from > n || to < 1 || to > n {
		return track.Track{}, false
	}
	t := q.items[from-1]
	q.items = append(q.items[:from-1], q.items[from:]...)
	rest := append([]track.Track{t}, q.items[to-1:]...)
	q.items = append(q.items[:to-1], rest...)
	return t, true
}

// Shuffle permutes the queue in place. Callers must check Len() >= 2 first;
// shuffling fewer items is their precondition violation, not the queue's.
func (q *Queue) Shuffle() {
	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
}

// Clear empties the queue. The current track of the owning room is unaffected.
func (q *Queue) Clear() {
	q.items = nil
}

// TotalPages returns the number of pages for the given page size. An empty
// queue still has one (empty) page.
func (q *Queue) TotalPages(pageSize int) int {
	if pageSize < 1 {
		return 1
	}
	n := (len(q.items) + pageSize - 1) / pageSize
	if n < 1 {
		n = 1
	}
	return n
}

// Page returns a read-only copy of the requested 1-based page and the total
// page count. Pages outside [1, totalPages] fail with ErrInvalidPage.
func (q *Queue) Page(pageSize, pageNum int) ([]track.Track, int, error) {
	if pageSize < 1 {
		pageSize = 10
	}
	total := q.TotalPages(pageSize)
	if pageNum < 1 || pageNum > total {
		return nil, total, ErrInvalidPage
	}
	start := (pageNum - 1) * pageSize
	end := start + pageSize
	if end > len(q.items) {
		end = len(q.items)
	}
	page := make([]track.Track, end-start)
	copy(page, q.items[start:end])
	return page, total, nil
}

// Snapshot returns a copy of all queued items in order.
func (q *Queue) Snapshot() []track.Track {
	cp := make([]track.Track, len(q.items))
	copy(cp, q.items)
	return cp
}
