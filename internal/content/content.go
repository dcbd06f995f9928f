package content

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const (
	MaxUsernameLength = 32
	MaxChatLength     = 2000
	MaxFileNameLength = 255
)

var (
	policy       = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
	roomIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	fileRegex    = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9._/-]*$`)
)

// ChatText trims a chat message and truncates it to MaxChatLength runes.
// The text is stored verbatim; clients render it as text, never as HTML.
// An empty result means the message should be dropped.
func ChatText(input string) string {
	return truncate(strings.TrimSpace(input), MaxChatLength)
}

// Username strips markup tags from a requested display name and keeps
// the remaining text unescaped. An empty result means the caller should
// synthesize a default.
func Username(input string) string {
	name := html.UnescapeString(strictPolicy.Sanitize(strings.TrimSpace(input)))
	return truncate(strings.TrimSpace(name), MaxUsernameLength)
}

// ValidateRoomID checks that the room id is 1-64 characters of
// alphanumerics, dash or underscore. Room ids key snapshot files.
func ValidateRoomID(id string) error {
	if id == "" {
		return errors.New("room id cannot be empty")
	}
	if !roomIDRegex.MatchString(id) {
		return errors.New("room id contains invalid characters (allowed: alphanumeric, dash, underscore)")
	}
	return nil
}

// ValidateFileName allows relative slash-separated names without "." or ".." segments.
func ValidateFileName(name string) error {
	if name == "" {
		return errors.New("file name cannot be empty")
	}
	if len(name) > MaxFileNameLength {
		return fmt.Errorf("file name longer than %d bytes", MaxFileNameLength)
	}
	if !fileRegex.MatchString(name) {
		return errors.New("file name contains invalid characters (allowed: alphanumeric, dot, dash, underscore, slash)")
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return errors.New("file name contains an empty or relative path segment")
		}
	}
	return nil
}

// CheckText rejects content that is not valid UTF-8 or that sniffs as a
// known binary format. Some signatures are plain letters ("BM", "MZ"), so
// a match only counts when the content also carries control bytes.
func CheckText(content string) error {
	if !utf8.ValidString(content) {
		return errors.New("content is not valid UTF-8")
	}
	if content == "" || !hasControl(content) {
		return nil
	}
	kind, _ := filetype.Match([]byte(content))
	if kind != filetype.Unknown {
		return fmt.Errorf("binary content (%s) is not supported", kind.MIME.Value)
	}
	return nil
}

func hasControl(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		return r < 0x20 && r != '\t' && r != '\n' && r != '\r' && r != '\f'
	})
}

// RenderMarkdown converts markdown to sanitized HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
