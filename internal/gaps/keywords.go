package gaps

import (
	"github.com/josephgoksu/Wayline/internal/utils"
)

// Phase is a stage of the fixed workflow ordering.
type Phase int

const (
	PhaseUnknown Phase = iota - 1
	PhaseResearch
	PhaseDesign
	PhasePlan
	PhaseBuild
	PhaseTest
	PhaseDeploy
	PhaseLaunch
)

var phaseNames = [...]string{"research", "design", "plan", "build", "test", "deploy", "launch"}

func (p Phase) String() string {
	if p < PhaseResearch || p > PhaseLaunch {
		return "unknown"
	}
	return phaseNames[p]
}

// phaseKeywords are matched against task text; the first phase in workflow
// order with a hit wins.
var phaseKeywords = map[Phase][]string{
	PhaseResearch: {"research", "investigate", "explore", "interview", "survey", "analyze", "discover", "benchmark", "competitor", "user needs"},
	PhaseDesign:   {"design", "mockup", "wireframe", "prototype", "sketch", "ux", "ui", "visual", "brand", "architecture"},
	PhasePlan:     {"plan", "roadmap", "schedule", "estimate", "scope", "prioritize", "milestone", "backlog", "spec"},
	PhaseBuild:    {"build", "implement", "develop", "code", "integrate", "refactor", "backend", "frontend", "api", "database", "migrate"},
	PhaseTest:     {"test", "qa", "verify", "validate", "review", "debug", "bug", "regression", "beta"},
	PhaseDeploy:   {"deploy", "release", "ship", "rollout", "provision", "staging", "production", "infrastructure", "ci"},
	PhaseLaunch:   {"launch", "announce", "marketing", "campaign", "press", "go live", "publish", "promote"},
}

// Skill domains. A task may touch several.
const (
	SkillDesign   = "design"
	SkillFrontend = "frontend"
	SkillBackend  = "backend"
	SkillData     = "data"
	SkillQA       = "qa"
	SkillDevOps   = "devops"
)

var skillKeywords = map[string][]string{
	SkillDesign:   {"design", "mockup", "wireframe", "prototype", "figma", "ux", "ui", "visual", "typography", "illustration"},
	SkillFrontend: {"frontend", "react", "css", "html", "component", "page", "layout", "responsive", "browser"},
	SkillBackend:  {"backend", "api", "server", "endpoint", "database", "schema", "auth", "service", "queue", "cache"},
	SkillData:     {"data", "analytics", "metric", "dashboard", "etl", "model training", "report", "sql"},
	SkillQA:       {"test", "qa", "bug", "regression", "verify", "acceptance", "e2e"},
	SkillDevOps:   {"deploy", "ci", "pipeline", "docker", "kubernetes", "infrastructure", "monitoring", "terraform", "staging"},
}

// keywordTable holds pre-tokenized keyword phrases so matching uses the same
// folding and stemming as task text.
type keywordTable[K comparable] struct {
	keys    []K
	phrases map[K][][]string
}

func newKeywordTable[K comparable](order []K, raw map[K][]string) keywordTable[K] {
	t := keywordTable[K]{keys: order, phrases: make(map[K][][]string, len(raw))}
	for _, k := range order {
		for _, kw := range raw[k] {
			if toks := utils.Tokenize(kw); len(toks) > 0 {
				t.phrases[k] = append(t.phrases[k], toks)
			}
		}
	}
	return t
}

// match returns every key with at least one phrase present in tokens, in table order.
func (t keywordTable[K]) match(tokens []string) []K {
	var hits []K
	for _, k := range t.keys {
		for _, p := range t.phrases[k] {
			if utils.ContainsPhrase(tokens, p) {
				hits = append(hits, k)
				break
			}
		}
	}
	return hits
}

var (
	phaseTable = newKeywordTable(
		[]Phase{PhaseResearch, PhaseDesign, PhasePlan, PhaseBuild, PhaseTest, PhaseDeploy, PhaseLaunch},
		phaseKeywords,
	)
	skillTable = newKeywordTable(
		[]string{SkillDesign, SkillFrontend, SkillBackend, SkillData, SkillQA, SkillDevOps},
		skillKeywords,
	)
)

// PhaseOf returns the earliest workflow phase named in text, or PhaseUnknown.
func PhaseOf(text string) Phase {
	hits := phaseTable.match(utils.Tokenize(text))
	if len(hits) == 0 {
		return PhaseUnknown
	}
	return hits[0]
}

// SkillsOf returns the skill domains named in text.
func SkillsOf(text string) []string {
	return skillTable.match(utils.Tokenize(text))
}
