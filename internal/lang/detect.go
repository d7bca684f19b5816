package lang

import (
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// DetectContent maps a file to a builtin language name, falling back to a
// shebang or editor modeline when the name says nothing. Empty means unknown.
func DetectContent(path string, content []byte) string {
	if name := Detect(path); name != "" {
		return name
	}
	if len(content) == 0 {
		return ""
	}
	if name, safe := enry.GetLanguageByShebang(content); safe {
		return builtinName(name)
	}
	if name, safe := enry.GetLanguageByModeline(content); safe {
		return builtinName(name)
	}
	return ""
}

func builtinName(enryName string) string {
	switch name := strings.ToLower(enryName); name {
	case HTML, JavaScript, CSS, JSON:
		return name
	default:
		return ""
	}
}
