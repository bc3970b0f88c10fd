package utils

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Elements whose boundaries separate words
var excerptBreaks = map[string]struct{}{
	"p": {}, "br": {}, "div": {}, "li": {}, "ol": {}, "ul": {}, "blockquote": {}, "pre": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {}, "hr": {},
	"table": {}, "tr": {}, "td": {}, "th": {}, "dd": {}, "dt": {},
}

// MakeExcerpt generates a plain text excerpt from rendered HTML, cut at
// limit runes on a word boundary when possible.
func MakeExcerpt(content string, limit int) string {
	if content == "" || limit <= 0 {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(content))
loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				break loop
			}
			return ""
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if _, ok := excerptBreaks[string(name)]; ok {
				b.WriteByte(' ')
			}
		}
	}

	clean := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(clean)
	if len(runes) <= limit {
		return clean
	}

	cut := runes[:limit]
	for i := len(cut) - 1; i > limit/2; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimSpace(string(cut)) + "..."
}
