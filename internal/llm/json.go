package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dverbeek/carwise/internal/common"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// CleanMarkdownWrapper strips markdown code fences that models wrap around
// JSON replies despite instructions not to.
func CleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		// Drop the opening fence line (``` or ```json).
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		} else {
			content = strings.TrimPrefix(content, "```")
		}
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}

// ExtractJSON locates the outermost JSON object or array span in freeform
// text, keyed on whichever opener appears first. Returns the input unchanged
// if no span is found.
func ExtractJSON(content string) string {
	objStart := strings.IndexByte(content, '{')
	arrStart := strings.IndexByte(content, '[')

	pair := [2]byte{'{', '}'}
	if objStart < 0 || (arrStart >= 0 && arrStart < objStart) {
		pair = [2]byte{'[', ']'}
	}

	start := strings.IndexByte(content, pair[0])
	end := strings.LastIndexByte(content, pair[1])
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

// RepairJSON fixes the malformations models most often produce: trailing
// commas before closing braces/brackets and raw control characters inside
// the payload.
func RepairJSON(content string) string {
	content = trailingCommaRe.ReplaceAllString(content, "$1")

	var sb strings.Builder
	sb.Grow(len(content))
	for _, r := range content {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// DecodeLoose parses a freeform model reply into v, applying progressively
// more aggressive recovery: fence stripping, outermost-span extraction, then
// trailing-comma and control-character repair. Failure after repair returns
// common.ErrParse.
func DecodeLoose(content string, v any) error {
	content = CleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	content = ExtractJSON(content)
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	content = RepairJSON(content)
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	return nil
}
