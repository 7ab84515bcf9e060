// Package content turns post markup into the plain text sent to a TTS provider.
package content

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// DefaultWordLimit bounds provider cost per article.
const DefaultWordLimit = 500

// Transform rewrites post content before markup is stripped. Transforms run in
// the order they are listed on the Normalizer.
type Transform func(string) string

// Normalizer produces canonical narration text from a post.
type Normalizer struct {
	Transforms []Transform
	WordLimit  int // <= 0 disables truncation
}

// NewNormalizer returns a Normalizer with the built-in transforms.
func NewNormalizer(wordLimit int) *Normalizer {
	return &Normalizer{
		Transforms: []Transform{ExpandLineBreaks, StripURLs},
		WordLimit:  wordLimit,
	}
}

// knownShortcodes are removed in any form. Other bracketed text counts as a
// shortcode only when it has attributes or is a closing or self-closing tag.
var knownShortcodes = []string{"audio", "caption", "embed", "gallery", "playlist", "video", "wp_caption"}

var (
	shortcodePattern = regexp.MustCompile(`\[(?:/?(?:` + strings.Join(knownShortcodes, "|") + `)\b[^\]]*` +
		`|/[A-Za-z][\w-]*` +
		`|[A-Za-z][\w-]*(?:\s+[\w-]+\s*=[^\]]*|\s*/))\]`)
	escapedEntityPattern = regexp.MustCompile(`&amp;(#?[A-Za-z0-9]+;)`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
	breakPattern         = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|li|h[1-6]|blockquote|tr)>`)
	bareURLPattern       = regexp.MustCompile(`(?m)^\s*https?://\S+\s*$`)

	quoteReplacer = strings.NewReplacer(
		"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u2032", "'",
		"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u2033", `"`,
	)
	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&#160;", " ",
		"&amp;", " and ",
		"&#038;", " and ",
	)
)

// Normalize returns "<title>. <body>" with markup, shortcodes and excess
// whitespace removed and the body cut to WordLimit words.
func (n *Normalizer) Normalize(title, body string) string {
	for _, t := range n.Transforms {
		body = t(body)
	}

	text := n.clean(body)
	text = TruncateWords(text, n.WordLimit)

	if t := n.clean(title); t != "" {
		if text == "" {
			return t
		}
		return t + ". " + text
	}
	return text
}

func (n *Normalizer) clean(s string) string {
	// &amp;lt; is an escaped entity, not an ampersand
	s = escapedEntityPattern.ReplaceAllString(s, "&$1")
	s = entityReplacer.Replace(s)
	s = StripMarkup(s)
	s = shortcodePattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = quoteReplacer.Replace(s)
	return CollapseWhitespace(s)
}

// StripMarkup drops every tag and the contents of script and style elements.
// Entities in text nodes are decoded. Tags are removed without inserting
// spaces, so block boundaries need ExpandLineBreaks first.
func StripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way what we have is the text
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if isHiddenElement(name) {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isHiddenElement(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isHiddenElement(name []byte) bool {
	switch string(name) {
	case "script", "style", "noscript":
		return true
	}
	return false
}

// CollapseWhitespace folds whitespace runs into single spaces and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// TruncateWords keeps the first limit space-separated words. limit <= 0 keeps everything.
func TruncateWords(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= limit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:limit], " ")
}

// ExpandLineBreaks puts a space at line breaks and block ends so adjacent
// paragraphs do not fuse into one word once tags are removed.
func ExpandLineBreaks(s string) string {
	return breakPattern.ReplaceAllStringFunc(s, func(m string) string {
		return m + " "
	})
}

// StripURLs removes lines that consist of a bare URL; hosts turn those into embeds.
func StripURLs(s string) string {
	return bareURLPattern.ReplaceAllString(s, "")
}
