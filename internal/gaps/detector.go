// Package gaps finds discontinuities between adjacent tasks in a prioritized order.
package gaps

import (
	"math"
	"sort"

	"github.com/josephgoksu/Wayline/internal/task"
)

// Type is the dominant indicator of a gap.
type Type string

const (
	TypePhaseJump   Type = "phase_jump"
	TypeSkillJump   Type = "skill_jump"
	TypeTimeJump    Type = "time_jump"
	TypeMissingEdge Type = "missing_edge"
)

// MinIndicators is the number of indicators that must fire for a pair to be a gap.
const MinIndicators = 3

// Indicators are the four independent signals evaluated for a pair.
type Indicators struct {
	TimeJump    bool `json:"time"`
	PhaseJump   bool `json:"phase"`
	MissingEdge bool `json:"no_dep"`
	SkillJump   bool `json:"skill"`
}

// Count returns how many indicators are true.
func (in Indicators) Count() int {
	n := 0
	for _, b := range []bool{in.TimeJump, in.PhaseJump, in.MissingEdge, in.SkillJump} {
		if b {
			n++
		}
	}
	return n
}

// dominant picks the most telling indicator: phase, skill, time, then edge.
func (in Indicators) dominant() Type {
	switch {
	case in.PhaseJump:
		return TypePhaseJump
	case in.SkillJump:
		return TypeSkillJump
	case in.TimeJump:
		return TypeTimeJump
	default:
		return TypeMissingEdge
	}
}

// Gap is a flagged pair. It lives only for one analysis pass.
type Gap struct {
	PredecessorID string     `json:"predecessor_id"`
	SuccessorID   string     `json:"successor_id"`
	Position      int        `json:"position"` // index of the predecessor in the order
	Indicators    Indicators `json:"indicators"`
	Confidence    float64    `json:"confidence"`
	Type          Type       `json:"type"`
	FromPhase     string     `json:"from_phase,omitempty"`
	ToPhase       string     `json:"to_phase,omitempty"`
}

// Config tunes the detector.
type Config struct {
	TimeThreshold float64 // effort delta (hours) at which the time indicator fires
	MaxGaps       int     // top-N returned
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{TimeThreshold: 6, MaxGaps: 3}
}

// Detector evaluates consecutive pairs of an ordered task list.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector. Zero fields fall back to defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.TimeThreshold <= 0 {
		cfg.TimeThreshold = def.TimeThreshold
	}
	if cfg.MaxGaps <= 0 {
		cfg.MaxGaps = def.MaxGaps
	}
	return &Detector{cfg: cfg}
}

// MaxGaps returns the configured result limit.
func (d *Detector) MaxGaps() int { return d.cfg.MaxGaps }

// Detect returns at most MaxGaps gaps ranked by confidence, then position.
// It has no side effects; an empty result means the order flows cleanly.
func (d *Detector) Detect(ordered []task.Task, edges []task.Edge) []Gap {
	if len(ordered) < 2 {
		return nil
	}
	g := task.NewGraph(task.IDs(ordered), edges)

	var found []Gap
	for i := 0; i+1 < len(ordered); i++ {
		a, b := ordered[i], ordered[i+1]
		in, pa, pb := d.evaluate(a, b, g)
		conf, ok := confidence(in)
		if !ok {
			continue
		}
		gap := Gap{
			PredecessorID: a.ID,
			SuccessorID:   b.ID,
			Position:      i,
			Indicators:    in,
			Confidence:    conf,
			Type:          in.dominant(),
		}
		if pa != PhaseUnknown {
			gap.FromPhase = pa.String()
		}
		if pb != PhaseUnknown {
			gap.ToPhase = pb.String()
		}
		found = append(found, gap)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Confidence > found[j].Confidence
	})
	if len(found) > d.cfg.MaxGaps {
		found = found[:d.cfg.MaxGaps]
	}
	return found
}

// Evaluate exposes the indicator computation for a single pair.
func (d *Detector) Evaluate(a, b task.Task, edges []task.Edge) Indicators {
	in, _, _ := d.evaluate(a, b, task.NewGraph([]string{a.ID, b.ID}, edges))
	return in
}

func (d *Detector) evaluate(a, b task.Task, g *task.Graph) (Indicators, Phase, Phase) {
	pa, pb := PhaseOf(a.Text), PhaseOf(b.Text)
	in := Indicators{
		TimeJump:    math.Abs(b.EstimatedEffort-a.EstimatedEffort) >= d.cfg.TimeThreshold,
		PhaseJump:   phaseJump(pa, pb),
		MissingEdge: !g.Connected(a.ID, b.ID),
		SkillJump:   disjoint(SkillsOf(a.Text), SkillsOf(b.Text)),
	}
	return in, pa, pb
}

// confidence maps an indicator set to (count-2)/2, or false below MinIndicators.
func confidence(in Indicators) (float64, bool) {
	n := in.Count()
	if n < MinIndicators {
		return 0, false
	}
	return float64(n-2) / 2, true
}

// phaseJump is true when at least two workflow stages lie between the pair.
func phaseJump(a, b Phase) bool {
	if a == PhaseUnknown || b == PhaseUnknown {
		return false
	}
	dist := int(b) - int(a)
	if dist < 0 {
		dist = -dist
	}
	return dist-1 >= 2
}

// disjoint is true when both tasks name a skill domain and share none.
func disjoint(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return false
			}
		}
	}
	return true
}
