package tracker

import (
	"cmp"
	"slices"
)

// matchPair is a candidate correlation between an identity-less detection and
// a live entity with a synthesized id.
type matchPair struct {
	det    int
	entity int // index into Tracker.live
	iou    float64
}

// matchAnonymous correlates identity-less detections with synthesized-id
// entities by greedy highest-IoU assignment. The result is written to
// t.assigned: the entity id for matched detections, 0 otherwise. Upstream
// identities are never candidates.
func (t *Tracker) matchAnonymous(dets []Detection) {
	t.pairs = t.pairs[:0]
	for di := range dets {
		if hasIdentity(&dets[di]) {
			continue
		}
		for ei, e := range t.live {
			if !e.Synthetic {
				continue
			}
			iou := t.rects[di].IoU(e.Target)
			if iou >= t.cfg.MatchIoU && iou > 0 {
				t.pairs = append(t.pairs, matchPair{det: di, entity: ei, iou: iou})
			}
		}
	}
	if len(t.pairs) == 0 {
		return
	}

	slices.SortFunc(t.pairs, func(a, b matchPair) int {
		if c := cmp.Compare(b.iou, a.iou); c != 0 {
			return c
		}
		if c := cmp.Compare(a.det, b.det); c != 0 {
			return c
		}
		return cmp.Compare(a.entity, b.entity)
	})

	for _, p := range t.pairs {
		e := t.live[p.entity]
		if t.assigned[p.det] != 0 || e.seen {
			continue
		}
		t.assigned[p.det] = e.ID
		// reserve the entity for this frame; refresh() sets it again
		e.seen = true
	}
}

func hasIdentity(d *Detection) bool {
	return d.TrackingID != nil && *d.TrackingID >= 0
}
