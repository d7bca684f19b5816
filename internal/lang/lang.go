package lang

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ID identifies a registered grammar. Zero is never assigned.
type ID int64

const None ID = 0

const (
	HTML       = "html"
	JavaScript = "javascript"
	CSS        = "css"
	JSON       = "json"
)

type RefKind uint8

const (
	RefKnown RefKind = iota
	RefName
	RefMimetype
)

// Ref names a language either by a resolved id or by an unresolved name or
// mimetype taken from document text.
type Ref struct {
	Kind RefKind
	ID   ID
	Name string
}

func Known(id ID) Ref            { return Ref{Kind: RefKnown, ID: id} }
func ByName(name string) Ref     { return Ref{Kind: RefName, Name: name} }
func ByMimetype(mime string) Ref { return Ref{Kind: RefMimetype, Name: mime} }

func (r Ref) Resolved() bool { return r.Kind == RefKnown && r.ID != None }

func (r Ref) String() string {
	switch r.Kind {
	case RefKnown:
		return fmt.Sprintf("#%d", r.ID)
	case RefMimetype:
		return "mimetype:" + r.Name
	default:
		return r.Name
	}
}

var extMap = map[string]string{
	".html":  HTML,
	".htm":   HTML,
	".xhtml": HTML,
	".vue":   HTML,
	".js":    JavaScript,
	".jsx":   JavaScript,
	".mjs":   JavaScript,
	".cjs":   JavaScript,
	".css":   CSS,
	".json":  JSON,
	".jsonc": JSON,
}

var fileMap = map[string]string{
	"package.json":      JSON,
	"package-lock.json": JSON,
	"tsconfig.json":     JSON,
	".eslintrc":         JSON,
	".babelrc":          JSON,
}

// Detect maps a file path to a language name. An empty result means no
// builtin grammar handles the file.
func Detect(path string) string {
	base := filepath.Base(path)
	if name, ok := fileMap[base]; ok {
		return name
	}
	ext := strings.ToLower(filepath.Ext(base))
	return extMap[ext]
}
