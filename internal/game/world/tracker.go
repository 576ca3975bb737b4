package world

import "go.uber.org/zap"

// activePath is the stored route toward a navigation target.
type activePath struct {
	target string
	steps  []Direction
}

// NavigateTo computes and stores a path from the current room to targetID.
// Subsequent HandleMovement calls consume the stored path step by step.
//
// Postcondition: Returns a copy of the computed path, or nil if there is no
// current room or no route; in that case no path is stored.
func (g *Graph) NavigateTo(targetID string) []Direction {
	g.mu.RLock()
	current := g.current
	g.mu.RUnlock()
	if current == "" {
		return nil
	}

	steps := g.FindPath(current, targetID)
	if steps == nil {
		return nil
	}

	g.mu.Lock()
	g.path = activePath{target: targetID, steps: append([]Direction(nil), steps...)}
	g.mu.Unlock()
	return steps
}

// ActivePath returns the remaining steps and target of the stored route.
//
// Postcondition: Returns (nil, "", false) if no route is active.
func (g *Graph) ActivePath() ([]Direction, string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.path.target == "" {
		return nil, "", false
	}
	return append([]Direction(nil), g.path.steps...), g.path.target, true
}

// NextStep returns the next direction of the active route without consuming
// it; consumption happens when HandleMovement observes the arrival.
//
// Postcondition: Returns ("", false) if no route is active or it is complete.
func (g *Graph) NextStep() (Direction, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.path.target == "" || len(g.path.steps) == 0 {
		return "", false
	}
	return g.path.steps[0], true
}

// ClearPath discards the active route.
func (g *Graph) ClearPath() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.path = activePath{}
}

// advancePathLocked reconciles the active route with an observed move.
// Caller must hold g.mu.
//
// If the new room matches the expected next hop — looked up from the previous
// room's exit table for the expected direction — one step is consumed. On any
// deviation (forced movement, trap, manual override) the route is recomputed
// from the new room; if that fails the route is cleared rather than left
// stale.
func (g *Graph) advancePathLocked(prevID, newID string, moved Direction) {
	if g.path.target == "" {
		return
	}

	if newID == g.path.target {
		g.path = activePath{}
		return
	}

	if len(g.path.steps) > 0 && prevID != "" {
		expectedDir := g.path.steps[0]
		if prev, ok := g.rooms[prevID]; ok {
			if e, ok := prev.ExitFor(expectedDir); ok && e.Explored() && e.TargetRoom == newID {
				g.path.steps = g.path.steps[1:]
				return
			}
		}
	}

	// Deviated. Recompute from where we actually are.
	steps := g.bfsLocked(newID, func(r *Room) bool { return r.ID == g.path.target })
	if steps == nil {
		g.logger.Warn("active path lost after deviation",
			zap.String("room", newID),
			zap.String("target", g.path.target),
			zap.String("moved", string(moved)),
		)
		g.path = activePath{}
		return
	}
	g.path.steps = steps
}
