package player

import (
	"math/rand"

	"github.com/mcarli/jambox/internal/domain/track"
)

// queue holds the ordered tracks and the current-position pointer.
// Indices below the pointer are played history; the history length never
// exceeds maxHistory after normalization.
type queue struct {
	items      []*track.Track
	pointer    int
	maxHistory int
}

func newQueue(maxHistory int) *queue {
	if maxHistory < 0 {
		maxHistory = 0
	}
	return &queue{maxHistory: maxHistory}
}

// current returns the track at the pointer, or nil when the remaining view
// is empty.
func (q *queue) current() *track.Track {
	if q.pointer < 0 || q.pointer >= len(q.items) {
		return nil
	}
	return q.items[q.pointer]
}

func (q *queue) push(ts ...*track.Track) int {
	q.items = append(q.items, ts...)
	return len(q.items)
}

func (q *queue) length() int { return len(q.items) }

// remaining counts the current track plus everything after it.
func (q *queue) remaining() int {
	if q.pointer >= len(q.items) {
		return 0
	}
	return len(q.items) - q.pointer
}

func (q *queue) historyLen() int {
	if q.pointer > len(q.items) {
		return len(q.items)
	}
	return q.pointer
}

// remainingSeconds sums the durations of the current and future tracks.
func (q *queue) remainingSeconds() int {
	total := 0
	for i := q.pointer; i < len(q.items); i++ {
		total += q.items[i].DurationSec
	}
	return total
}

// advance performs the loop-none natural move: when the history is at
// capacity the oldest entry is dropped and the pointer keeps its relative
// position, otherwise the pointer moves forward.
func (q *queue) advance() {
	if q.pointer >= len(q.items) {
		return
	}
	if q.pointer == q.maxHistory {
		q.items = q.items[1:]
		return
	}
	q.pointer++
}

// skip moves the pointer forward by n-1 positions beyond the one implied by
// the forced advance, then re-normalizes history.
func (q *queue) skip(n int) {
	q.pointer += n - 1
	q.trimHistory()
	if q.pointer > len(q.items) {
		q.pointer = len(q.items)
	}
}

// back rewinds the pointer by n, floored at zero.
func (q *queue) back(n int) {
	q.pointer -= n
	if q.pointer < 0 {
		q.pointer = 0
	}
}

// rotateTail moves the last n entries to just before the pointer. Used by
// back under loop-all, where history is reconstructed from the loop instead
// of rewinding truly-played entries. No-op when n spans the remaining view.
func (q *queue) rotateTail(n int) {
	if n < 1 || n >= len(q.items)-q.pointer {
		return
	}
	tail := make([]*track.Track, n)
	copy(tail, q.items[len(q.items)-n:])
	rest := q.items[:len(q.items)-n]
	moved := make([]*track.Track, 0, len(q.items))
	moved = append(moved, rest[:q.pointer]...)
	moved = append(moved, tail...)
	moved = append(moved, rest[q.pointer:]...)
	q.items = moved
}

// removeAfter splices howMany entries starting offset positions after the
// pointer. The current track is never touched; callers route offset zero
// through skip instead.
func (q *queue) removeAfter(offset, howMany int) int {
	start := q.pointer + offset
	if start >= len(q.items) {
		return 0
	}
	end := start + howMany
	if end > len(q.items) {
		end = len(q.items)
	}
	removed := end - start
	q.items = append(q.items[:start], q.items[end:]...)
	return removed
}

// discardCurrent removes the track at the pointer without retaining it in
// history, leaving the pointer on the next track.
func (q *queue) discardCurrent() *track.Track {
	cur := q.current()
	if cur == nil {
		return nil
	}
	q.items = append(q.items[:q.pointer], q.items[q.pointer+1:]...)
	return cur
}

// requeueCurrent moves the current track to the tail, used by loop-all on
// natural completion. The pointer then addresses the next track and the
// queue length is unchanged.
func (q *queue) requeueCurrent() {
	cur := q.discardCurrent()
	if cur != nil {
		q.items = append(q.items, cur)
	}
}

// shuffle permutes only the sub-range strictly after the pointer.
func (q *queue) shuffle(rng *rand.Rand) {
	first := q.pointer + 1
	for i := len(q.items) - 1; i > q.pointer; i-- {
		j := first + rng.Intn(i-first+1)
		q.items[i], q.items[j] = q.items[j], q.items[i]
	}
}

// trimHistory drops the oldest history entries until the pointer is back
// within the cap, preserving the current track's identity.
func (q *queue) trimHistory() {
	if over := q.pointer - q.maxHistory; over > 0 {
		if over > len(q.items) {
			over = len(q.items)
		}
		q.items = q.items[over:]
		q.pointer -= over
	}
}

// clear drops everything and resets the pointer.
func (q *queue) clear() {
	q.items = nil
	q.pointer = 0
}

// snapshotTracks returns value copies of the remaining view, current track
// first. Mix state is internal and not exposed.
func (q *queue) snapshotTracks() []track.Track {
	out := make([]track.Track, 0, q.remaining())
	for i := q.pointer; i < len(q.items); i++ {
		cp := *q.items[i]
		cp.Mix = nil
		out = append(out, cp)
	}
	return out
}
