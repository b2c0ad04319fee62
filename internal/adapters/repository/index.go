package repository

import (
	"math/rand/v2"
	"time"

	"github.com/okian/scoreboard/internal/domain/ledger"
)

// Treap-backed ordered index of one course's entries.
//
// In-order traversal yields the leaderboard from best to worst. Nodes are
// augmented with subtree sizes so offset lookups and "strictly above"
// counts are O(log n) expected.

// sortKey is the snapshot of the fields an entry is ordered by. It is
// kept on the node so the old position can be found after the entry
// itself has changed.
type sortKey struct {
	score       float64
	lessons     int
	moduleTests int
	updated     time.Time
	learnerID   string
}

func keyOf(e *ledger.Entry) sortKey {
	return sortKey{
		score:       e.OverallScore,
		lessons:     e.LessonsCompleted,
		moduleTests: e.ModuleTestsCompleted,
		updated:     e.LastUpdated,
		learnerID:   e.LearnerID,
	}
}

// before mirrors ranking.Less on the snapshot.
func (a sortKey) before(b sortKey) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.lessons != b.lessons {
		return a.lessons > b.lessons
	}
	if a.moduleTests != b.moduleTests {
		return a.moduleTests > b.moduleTests
	}
	if !a.updated.Equal(b.updated) {
		return a.updated.Before(b.updated)
	}
	return a.learnerID < b.learnerID
}

func (a sortKey) same(b sortKey) bool {
	return a.learnerID == b.learnerID && a.score == b.score &&
		a.lessons == b.lessons && a.moduleTests == b.moduleTests &&
		a.updated.Equal(b.updated)
}

type node struct {
	key   sortKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k sortKey, prio uint64) *node {
	if n == nil {
		return &node{key: k, prio: prio, size: 1}
	}
	if k.before(n.key) {
		n.left = insert(n.left, k, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, k sortKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case k.same(n.key):
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, k)
		}
	case k.before(n.key):
		n.left = remove(n.left, k)
	default:
		n.right = remove(n.right, k)
	}
	fix(n)
	return n
}

// courseIndex orders the learners of one course. It is not safe for
// concurrent use; MemoryStore guards it.
type courseIndex struct {
	root *node
	keys map[string]sortKey
}

func newCourseIndex() *courseIndex {
	return &courseIndex{keys: make(map[string]sortKey)}
}

// upsert places e at its current position, moving it if already indexed.
func (ix *courseIndex) upsert(e *ledger.Entry) {
	k := keyOf(e)
	if old, ok := ix.keys[e.LearnerID]; ok {
		if old.same(k) {
			return
		}
		ix.root = remove(ix.root, old)
	}
	ix.keys[e.LearnerID] = k
	ix.root = insert(ix.root, k, rand.Uint64())
}

func (ix *courseIndex) len() int { return nsize(ix.root) }

// countAbove counts entries whose score is strictly greater than score.
func (ix *courseIndex) countAbove(score float64) int {
	count := 0
	n := ix.root
	for n != nil {
		if n.key.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// slice returns up to limit learner ids starting at offset, in order.
func (ix *courseIndex) slice(offset, limit int) []string {
	out := make([]string, 0, min(limit, max(ix.len()-offset, 0)))
	collect(ix.root, offset, limit, &out)
	return out
}

func collect(n *node, skip, limit int, out *[]string) int {
	if n == nil || len(*out) >= limit {
		return skip
	}
	if skip >= n.size {
		return skip - n.size
	}
	skip = collect(n.left, skip, limit, out)
	if len(*out) >= limit {
		return skip
	}
	if skip > 0 {
		skip--
	} else {
		*out = append(*out, n.key.learnerID)
	}
	return collect(n.right, skip, limit, out)
}
