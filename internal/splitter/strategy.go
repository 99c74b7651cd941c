package splitter

import (
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
)

// Strategy selects the enrichment prompt used for a file.
type Strategy string

// Enrichment strategies. Code files get an analyst prompt; everything
// else gets a document-compression prompt.
const (
	StrategyCode     Strategy = "code"
	StrategyDocument Strategy = "document"
)

var codeExtensions = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".py": true,
	".java": true, ".cpp": true, ".c": true, ".h": true, ".hpp": true,
	".cs": true, ".go": true, ".rb": true, ".php": true, ".swift": true,
	".rs": true, ".kt": true, ".scala": true, ".pl": true, ".sh": true,
	".ps1": true, ".bat": true, ".cmd": true, ".lua": true, ".r": true,
	".sql": true, ".yaml": true, ".yml": true, ".json": true, ".xml": true,
	".html": true, ".css": true, ".scss": true, ".vue": true, ".svelte": true,
	".dart": true, ".gradle": true, ".tf": true, ".hcl": true, ".zig": true,
	".ex": true, ".exs": true, ".erl": true, ".hs": true, ".ml": true,
	".clj": true, ".groovy": true, ".toml": true, ".ini": true, ".cfg": true,
	".conf": true, ".properties": true, ".env": true, ".dockerfile": true,
	".cmake": true, ".make": true, ".proto": true, ".sol": true,
}

// StrategyFor classifies a file extension.
func StrategyFor(ext string) Strategy {
	if codeExtensions[ext] {
		return StrategyCode
	}
	return StrategyDocument
}

// SystemPrompt returns the system message for a strategy.
func (s Strategy) SystemPrompt() driven.ChatMessage {
	switch s {
	case StrategyCode:
		return driven.ChatMessage{
			Role: "system",
			Content: "You are a code analyst. You will receive a source file and one " +
				"chunk taken from it. Reply with a short context that situates the chunk " +
				"within the file: the surrounding functions, types, or flow it belongs to, " +
				"and what the chunk itself does. Answer with the context only, nothing else.",
		}
	default:
		return driven.ChatMessage{
			Role: "system",
			Content: "You will receive a document and one chunk taken from it. Reply " +
				"with a short context that situates the chunk within the overall document, " +
				"keeping key terms and examples so the chunk can be retrieved by search. " +
				"Answer with the context only, nothing else.",
		}
	}
}
