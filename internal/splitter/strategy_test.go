package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, StrategyCode, StrategyFor(".go"))
	assert.Equal(t, StrategyCode, StrategyFor(".tsx"))
	assert.Equal(t, StrategyCode, StrategyFor(".sql"))
	assert.Equal(t, StrategyDocument, StrategyFor(".md"))
	assert.Equal(t, StrategyDocument, StrategyFor(".txt"))
	assert.Equal(t, StrategyDocument, StrategyFor(""))
}

func TestSystemPromptsDiffer(t *testing.T) {
	code := StrategyCode.SystemPrompt()
	doc := StrategyDocument.SystemPrompt()

	assert.Equal(t, "system", code.Role)
	assert.Equal(t, "system", doc.Role)
	assert.NotEqual(t, code.Content, doc.Content)
	assert.Contains(t, code.Content, "code analyst")
}
