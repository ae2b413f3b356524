package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"design", "mockup"}, Tokenize("Design mockups"))
	assert.Equal(t, []string{"legal", "block", "customer", "outreach"}, Tokenize("Legal BLOCKED customer-outreach!"))
	assert.Equal(t, []string{"test", "release"}, Tokenize("Testing the release"))
	assert.Empty(t, Tokenize("the and of"))
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"mockups":   "mockup",
		"stories":   "story",
		"features":  "feature",
		"boxes":     "box",
		"launches":  "launch",
		"uses":      "use",
		"api":       "api",
		"planning":  "plan",
		"planned":   "plan",
		"shipping":  "ship",
		"shipped":   "ship",
		"embedded":  "embed",
		"testing":   "test",
		"added":     "add",
		"installed": "install",
		"passed":    "pass",
	}
	for in, want := range cases {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestContainsPhrase(t *testing.T) {
	tokens := Tokenize("Reach out to customer outreach partners")
	assert.True(t, ContainsPhrase(tokens, Tokenize("customer outreach")))
	assert.False(t, ContainsPhrase(tokens, Tokenize("outreach customer")))
	assert.False(t, ContainsPhrase(tokens, nil))
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard("Design mockups", "design the mockup"), 1e-9)
	assert.InDelta(t, 0.0, Jaccard("Design mockups", "Launch app"), 1e-9)
	assert.InDelta(t, 1.0/3.0, Jaccard("write docs", "write tests"), 1e-9)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "legal blocked outreach", Fold("  Legal   BLOCKED\toutreach "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel...", Truncate("hello world", 6))
}
