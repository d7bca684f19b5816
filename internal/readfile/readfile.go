package readfile

import (
	"strings"

	"github.com/hcengineering/tree-sitter-offload/internal/doctext"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// ReadText loads a file as UTF-16 document text with CRLF line endings
// normalized to LF.
func ReadText(fs afero.Fs, path string) (*doctext.Text, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("read %s: %w", path, err)
	}

	normalized := strings.ReplaceAll(string(data), "\r\n", "\n")
	return doctext.FromString(normalized), nil
}
