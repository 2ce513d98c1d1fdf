package session

// gestureGate debounces the per-frame pinch flag into stable engage/release
// edges via a majority vote over a sliding window. Raw classifier output
// flickers; edits must not.
type gestureGate struct {
	window        int
	minConfidence float64

	votes   []bool
	next    int
	engaged bool
}

func newGestureGate(window int, minConfidence float64) *gestureGate {
	if window < 1 {
		window = 1
	}
	return &gestureGate{
		window:        window,
		minConfidence: minConfidence,
		votes:         make([]bool, window),
	}
}

// Update pushes one frame's gesture state and reports the debounced state
// plus any edge crossed this frame. Unseen slots count as inactive, so a
// fresh gate needs a strict majority of real positive frames to engage.
func (g *gestureGate) Update(active bool, confidence float64) (engaged, engagedEdge, releasedEdge bool) {
	g.votes[g.next] = active && confidence >= g.minConfidence
	g.next = (g.next + 1) % g.window

	want := g.yes()*2 > g.window
	if want != g.engaged {
		g.engaged = want
		if want {
			return true, true, false
		}
		return false, false, true
	}
	return g.engaged, false, false
}

// Confidence is the fraction of positive votes in the window.
func (g *gestureGate) Confidence() float64 {
	return float64(g.yes()) / float64(g.window)
}

func (g *gestureGate) yes() int {
	n := 0
	for _, v := range g.votes {
		if v {
			n++
		}
	}
	return n
}

// Reset drops all votes, e.g. when the controller changes.
func (g *gestureGate) Reset() {
	for i := range g.votes {
		g.votes[i] = false
	}
	g.next = 0
	g.engaged = false
}
