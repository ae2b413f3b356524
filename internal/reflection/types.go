// Package reflection turns free-text situational context into cached
// intents and applies them to the task graph as per-task effects.
package reflection

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/Wayline/internal/utils"
)

// Type is the top-level intent category.
type Type string

const (
	TypeConstraint  Type = "constraint"
	TypeOpportunity Type = "opportunity"
	TypeCapacity    Type = "capacity"
	TypeSequencing  Type = "sequencing"
	TypeInformation Type = "information"
)

// Subtype refines a Type. Each subtype belongs to exactly one type.
type Subtype string

const (
	SubtypeBlocker     Subtype = "blocker"
	SubtypeSoftBlock   Subtype = "soft-block"
	SubtypeBoost       Subtype = "boost"
	SubtypeEnergyLevel Subtype = "energy-level"
	SubtypeDependency  Subtype = "dependency"
	SubtypeContextOnly Subtype = "context-only"
)

// subtypeOf maps every subtype to its owning type.
var subtypeOf = map[Subtype]Type{
	SubtypeBlocker:     TypeConstraint,
	SubtypeSoftBlock:   TypeConstraint,
	SubtypeBoost:       TypeOpportunity,
	SubtypeEnergyLevel: TypeCapacity,
	SubtypeDependency:  TypeSequencing,
	SubtypeContextOnly: TypeInformation,
}

// ValidPair reports whether t/s is one of the six category pairs.
func ValidPair(t Type, s Subtype) bool {
	owner, ok := subtypeOf[s]
	return ok && owner == t
}

// Strength is how firmly a reflection applies.
type Strength string

const (
	StrengthHard Strength = "hard"
	StrengthSoft Strength = "soft"
)

// Polarity distinguishes a drain from a boost for capacity intents.
type Polarity string

const (
	PolarityNegative Polarity = "negative"
	PolarityPositive Polarity = "positive"
)

// Duration is an optional window during which the reflection holds.
type Duration struct {
	Amount int    `json:"amount" validate:"min=1,max=90"`
	Unit   string `json:"unit" validate:"oneof=hours days weeks"`
}

// Reflection is a piece of user-supplied context.
type Reflection struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReflection returns an active reflection with a fresh id.
func NewReflection(userID, text string) Reflection {
	now := time.Now().UTC()
	return Reflection{
		ID:        "refl-" + uuid.New().String()[:8],
		UserID:    userID,
		Text:      text,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Intent is the structured reading of one reflection.
type Intent struct {
	ReflectionID string    `json:"reflection_id"`
	UserID       string    `json:"user_id"`
	Type         Type      `json:"type"`
	Subtype      Subtype   `json:"subtype"`
	Strength     Strength  `json:"strength"`
	Polarity     Polarity  `json:"polarity"`
	Keywords     []string  `json:"keywords"`
	Duration     *Duration `json:"duration,omitempty"`
	Summary      string    `json:"summary"`
	TextHash     string    `json:"text_hash"`
	Degraded     bool      `json:"degraded"`
	CreatedAt    time.Time `json:"created_at"`
}

// TextHash identifies reflection text after case and whitespace folding.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(utils.Fold(text)))
	return hex.EncodeToString(sum[:])
}

// Kind is the effect a reflection has on one task.
type Kind string

const (
	KindBlocked   Kind = "blocked"
	KindDemoted   Kind = "demoted"
	KindBoosted   Kind = "boosted"
	KindUnchanged Kind = "unchanged"
)

// rank orders kinds for precedence: hard blocks, soft blocks, boosts.
func (k Kind) rank() int {
	switch k {
	case KindBlocked:
		return 3
	case KindDemoted:
		return 2
	case KindBoosted:
		return 1
	default:
		return 0
	}
}

// Effect is the resolved influence on one task, attributed to the
// reflection that won precedence.
type Effect struct {
	ReflectionID string  `json:"reflection_id"`
	TaskID       string  `json:"task_id"`
	Effect       Kind    `json:"effect"`
	Magnitude    float64 `json:"magnitude"`
	Reason       string  `json:"reason"`
	Warning      bool    `json:"warning,omitempty"`
}

// Calculation methods reported with every outcome.
const (
	MethodClassified = "classified"
	MethodCached     = "cached"
)

// Outcome is the result of an apply or toggle.
type Outcome struct {
	Effects           []Effect `json:"effects"`
	CalculationMethod string   `json:"calculation_method"`
	Classifications   int      `json:"classifications"`
	Degraded          bool     `json:"degraded"`
	Warnings          []string `json:"warnings,omitempty"`
}
