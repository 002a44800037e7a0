// Package pathfind selects randomized multi-hop routes through the indexed
// channel topology.
package pathfind

import (
	"container/heap"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/probanet/proba-go/model/proba"
)

// Topology is the view of the channel graph the finder walks. It is
// satisfied by the indexer.
type Topology interface {
	ChannelsOf(party proba.Address) ([]proba.ChannelEntry, error)
}

// Filter decides whether a node may be used as an intermediate hop. A nil
// filter admits every node.
type Filter func(proba.Address) bool

// Path is a sequence of nodes, starting at the local node.
type Path []proba.Address

// Hops returns the number of edges in the path.
func (p Path) Hops() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

func (p Path) contains(addr proba.Address) bool {
	for _, hop := range p {
		if hop == addr {
			return true
		}
	}
	return false
}

// Finder searches for paths of a requested length through the topology. The
// search is randomized so repeated queries spread traffic over different
// routes.
type Finder struct {
	log      zerolog.Logger
	topology Topology
	rng      *rand.Rand
}

// NewFinder creates a finder. A nil source seeds one from the clock.
func NewFinder(log zerolog.Logger, topology Topology, src rand.Source) *Finder {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Finder{
		log:      log.With().Str("component", "pathfind").Logger(),
		topology: topology,
		rng:      rand.New(src),
	}
}

// FindPath searches for a path of exactly hops edges starting at start. It
// explores longest candidate paths first, extending each by one randomly
// chosen admissible neighbor per step. If the iteration budget is exhausted
// or the frontier runs dry, the longest path found is returned together with
// ErrPathNotFound.
func (f *Finder) FindPath(
	ctx context.Context,
	start proba.Address,
	hops uint,
	maxIterations uint,
	filter Filter,
) (Path, error) {

	if hops == 0 {
		return Path{start}, nil
	}

	queue := &pathQueue{Path{start}}
	heap.Init(queue)

	var longest Path
	for iteration := uint(0); queue.Len() > 0; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if iteration >= maxIterations {
			break
		}

		current := heap.Pop(queue).(Path)
		if uint(current.Hops()) >= hops {
			return current, nil
		}
		if current.Hops() > longest.Hops() || len(longest) == 0 {
			longest = current
		}

		candidates, err := f.admissible(current, filter)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			// dead end
			continue
		}

		pick := f.rng.Intn(len(candidates))
		extended := make(Path, len(current), len(current)+1)
		copy(extended, current)
		extended = append(extended, candidates[pick])
		heap.Push(queue, extended)

		// alternatives stay explorable through the shorter prefix
		if len(candidates) > 1 {
			heap.Push(queue, current)
		}
	}

	if uint(longest.Hops()) >= hops {
		return longest, nil
	}
	f.log.Debug().
		Uint("requested", hops).
		Int("longest", longest.Hops()).
		Msg("path search exhausted")
	return longest, fmt.Errorf("requested %d hops, best %d: %w", hops, longest.Hops(), proba.ErrPathNotFound)
}

// admissible returns the neighbors of the path's tip that are not already on
// the path and pass the filter.
func (f *Finder) admissible(path Path, filter Filter) ([]proba.Address, error) {
	tip := path[len(path)-1]
	channels, err := f.topology.ChannelsOf(tip)
	if err != nil {
		return nil, fmt.Errorf("could not load channels of %s: %w", tip, err)
	}

	var candidates []proba.Address
	for _, entry := range channels {
		next := entry.OtherParty(tip)
		if path.contains(next) {
			continue
		}
		if filter != nil && !filter(next) {
			continue
		}
		candidates = append(candidates, next)
	}
	return candidates, nil
}

// pathQueue is a longest-first priority queue of candidate paths.
type pathQueue []Path

func (q pathQueue) Len() int            { return len(q) }
func (q pathQueue) Less(i, j int) bool  { return len(q[i]) > len(q[j]) }
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(Path)) }

func (q *pathQueue) Pop() interface{} {
	old := *q
	n := len(old)
	path := old[n-1]
	*q = old[:n-1]
	return path
}
