package world

import "container/heap"

// FindPath returns the shortest sequence of directions from fromID to toID
// using breadth-first search over explored exits.
//
// Postcondition: Returns nil if either room is unknown or no path exists.
// A path between a room and itself is the empty (non-nil) slice.
func (g *Graph) FindPath(fromID, toID string) []Direction {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.rooms[toID]; !ok {
		return nil
	}
	return g.bfsLocked(fromID, func(r *Room) bool { return r.ID == toID })
}

// FindNearestUnvisited returns the shortest path from fromID to the closest
// room that has not been visited.
//
// Postcondition: Returns (roomID, path, true) on success; path may be empty
// if fromID itself is unvisited. Returns ("", nil, false) if every reachable
// room is visited or fromID is unknown.
func (g *Graph) FindNearestUnvisited(fromID string) (string, []Direction, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var found string
	path := g.bfsLocked(fromID, func(r *Room) bool {
		if !r.Visited {
			found = r.ID
			return true
		}
		return false
	})
	if path == nil {
		return "", nil, false
	}
	return found, path, true
}

// FindNearestRoom returns the candidate with the shortest path from fromID.
// Candidate lists are expected to be small (tens, not thousands).
//
// Postcondition: Returns ("", nil, false) if no candidate is reachable.
func (g *Graph) FindNearestRoom(fromID string, candidates []string) (string, []Direction, bool) {
	var bestID string
	var best []Direction
	for _, id := range candidates {
		p := g.FindPath(fromID, id)
		if p == nil {
			continue
		}
		if best == nil || len(p) < len(best) {
			bestID, best = id, p
		}
	}
	if best == nil {
		return "", nil, false
	}
	return bestID, best, true
}

// FindRoomsInRadius returns every room reachable from fromID within maxSteps
// hops, mapped to its hop distance. fromID itself is included at distance 0.
//
// Postcondition: Returns a non-nil map; empty if fromID is unknown.
func (g *Graph) FindRoomsInRadius(fromID string, maxSteps int) map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	dist := make(map[string]int)
	if _, ok := g.rooms[fromID]; !ok || maxSteps < 0 {
		return dist
	}
	dist[fromID] = 0
	queue := []string{fromID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if dist[id] == maxSteps {
			continue
		}
		for _, e := range g.rooms[id].Exits {
			if !e.Explored() {
				continue
			}
			if _, seen := dist[e.TargetRoom]; seen {
				continue
			}
			if _, ok := g.rooms[e.TargetRoom]; !ok {
				continue
			}
			dist[e.TargetRoom] = dist[id] + 1
			queue = append(queue, e.TargetRoom)
		}
	}
	return dist
}

// bfsLocked runs breadth-first search from fromID until goal matches.
// Caller must hold g.mu (read or write).
//
// Postcondition: Returns the direction sequence to the first matching room,
// or nil if fromID is unknown or nothing matches.
func (g *Graph) bfsLocked(fromID string, goal func(*Room) bool) []Direction {
	start, ok := g.rooms[fromID]
	if !ok {
		return nil
	}
	if goal(start) {
		return []Direction{}
	}

	came := map[string]hopEntry{fromID: {}}
	queue := []string{fromID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for dir, e := range g.rooms[id].Exits {
			if !e.Explored() {
				continue
			}
			next, ok := g.rooms[e.TargetRoom]
			if !ok {
				continue
			}
			if _, seen := came[next.ID]; seen {
				continue
			}
			came[next.ID] = hopEntry{prev: id, dir: dir}
			if goal(next) {
				return reconstruct(came, fromID, next.ID)
			}
			queue = append(queue, next.ID)
		}
	}
	return nil
}

// hopEntry records how search reached a room: from which predecessor, in
// which direction.
type hopEntry struct {
	prev string
	dir  Direction
}

func reconstruct(came map[string]hopEntry, fromID, toID string) []Direction {
	var rev []Direction
	for id := toID; id != fromID; {
		h := came[id]
		rev = append(rev, h.dir)
		id = h.prev
	}
	out := make([]Direction, len(rev))
	for i, d := range rev {
		out[len(rev)-1-i] = d
	}
	return out
}

// frontierItem is one entry in the A* priority queue.
type frontierItem struct {
	roomID string
	cost   int
	index  int
}

type frontier []*frontierItem

func (f frontier) Len() int            { return len(f) }
func (f frontier) Less(i, j int) bool  { return f[i].cost < f[j].cost }
func (f frontier) Swap(i, j int)       { f[i], f[j] = f[j], f[i]; f[i].index = i; f[j].index = j }
func (f *frontier) Push(x interface{}) { it := x.(*frontierItem); it.index = len(*f); *f = append(*f, it) }
func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return it
}

// FindPathAStar returns a shortest path from fromID to toID using A* with a
// zero heuristic (uniform-cost search). With unit edge costs the result
// length always equals FindPath's; the priority-queue frontier is typically
// smaller on large maps.
//
// Postcondition: Returns nil if either room is unknown or no path exists.
func (g *Graph) FindPathAStar(fromID, toID string) []Direction {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.rooms[fromID]; !ok {
		return nil
	}
	if _, ok := g.rooms[toID]; !ok {
		return nil
	}
	if fromID == toID {
		return []Direction{}
	}

	came := make(map[string]hopEntry)
	cost := map[string]int{fromID: 0}
	closed := make(map[string]bool)

	pq := &frontier{}
	heap.Init(pq)
	heap.Push(pq, &frontierItem{roomID: fromID, cost: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*frontierItem)
		if closed[cur.roomID] {
			continue
		}
		if cur.roomID == toID {
			return reconstruct(came, fromID, toID)
		}
		closed[cur.roomID] = true

		for dir, e := range g.rooms[cur.roomID].Exits {
			if !e.Explored() || closed[e.TargetRoom] {
				continue
			}
			if _, ok := g.rooms[e.TargetRoom]; !ok {
				continue
			}
			next := cost[cur.roomID] + 1
			if old, seen := cost[e.TargetRoom]; seen && old <= next {
				continue
			}
			cost[e.TargetRoom] = next
			came[e.TargetRoom] = hopEntry{prev: cur.roomID, dir: dir}
			// Heuristic 0: no spatial coordinates are trustworthy in
			// MUD topology, so this degrades to Dijkstra.
			heap.Push(pq, &frontierItem{roomID: e.TargetRoom, cost: next})
		}
	}
	return nil
}
