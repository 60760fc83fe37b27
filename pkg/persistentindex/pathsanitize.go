package persistentindex

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/smartindex/core/pkg/idxerrors"
)

var errEmptyPath = errors.New("path is empty after sanitization")

// SanitizePath implements spec.md §4.6's input sanitization for paths
// arriving from the freshness driver's version-control source, whose
// `git diff` output can carry shell-quoted and octal-escaped filenames:
// surrounding quotes are stripped, embedded quotes removed, octal escape
// sequences (`\NNN`) decoded to their raw bytes before UTF-8
// interpretation, and separators normalized to `/`.
func SanitizePath(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", idxerrors.New(idxerrors.PathSanitizationFailure, "sanitizePath", raw, errEmptyPath)
	}

	s = strings.Trim(s, `"'`)
	s = decodeOctalEscapes(s)
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, `'`, "")
	s = filepath.ToSlash(s)
	s = filepath.Clean(s)

	if s == "" || s == "." {
		return "", idxerrors.New(idxerrors.PathSanitizationFailure, "sanitizePath", raw, errEmptyPath)
	}
	return s, nil
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

// decodeOctalEscapes turns C-style `\NNN` octal byte escapes (as emitted
// by `git diff`/`git status` for non-ASCII paths under
// core.quotepath) back into their original bytes.
func decodeOctalEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+3 < len(s) && isOctalDigit(s[i+1]) && isOctalDigit(s[i+2]) && isOctalDigit(s[i+3]) {
			v := (s[i+1]-'0')*64 + (s[i+2]-'0')*8 + (s[i+3] - '0')
			buf = append(buf, v)
			i += 4
			continue
		}
		buf = append(buf, s[i])
		i++
	}
	return string(buf)
}
