package core

import (
	"regexp"
	"strings"
)

// DefaultFromAddress is used when no reply from-address is configured
const DefaultFromAddress = "Spam Checker <checker@spamreply.dev>"

// DefaultFooterHTML is the attribution appended to every reply
const DefaultFooterHTML = `<br><br><p style="font-size:12px;color:#888888;">` +
	`Checked by <a href="https://spamreply.dev">Spam Checker</a> ` +
	`<img src="https://spamreply.dev/badge.png" alt="Spam Checker" width="16" height="16"></p>`

var tagPattern = regexp.MustCompile(`<[^>]*>`)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// AppendFooter inserts footer before the last </body>, else before the last
// </html>, else at the end of html.
func AppendFooter(html, footer string) string {
	if i := lastIndexFold(html, "</body>"); i >= 0 {
		return html[:i] + footer + html[i:]
	}
	if i := lastIndexFold(html, "</html>"); i >= 0 {
		return html[:i] + footer + html[i:]
	}
	return html + footer
}

// elementContent returns what lies between the first <name ...> open tag and
// the last </name> close tag
func elementContent(html, name string) (string, bool) {
	for from := 0; ; {
		open := indexFold(html, "<"+name, from)
		if open < 0 {
			return "", false
		}
		after := open + len(name) + 1
		if after < len(html) && isTagNameEnd(html[after]) {
			gt := strings.IndexByte(html[after:], '>')
			if gt < 0 {
				return "", false
			}
			start := after + gt + 1
			end := lastIndexFold(html, "</"+name+">")
			if end < start {
				return "", false
			}
			return html[start:end], true
		}
		from = after
	}
}

func isTagNameEnd(b byte) bool {
	return b == '>' || b == '/' || b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// indexFold and lastIndexFold fold ASCII letters only, so the offsets they
// return are valid for s whatever else it contains.
func indexFold(s, substr string, from int) int {
	for i := from; i+len(substr) <= len(s); i++ {
		if hasPrefixFold(s[i:], substr) {
			return i
		}
	}
	return -1
}

func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if hasPrefixFold(s[i:], substr) {
			return i
		}
	}
	return -1
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if lowerASCII(s[i]) != lowerASCII(prefix[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + 'a' - 'A'
	}
	return b
}

// HTMLToText strips tags and unescapes the five basic entities. It is a
// readable fallback for the text part, not an HTML renderer.
func HTMLToText(html string) string {
	stripped := tagPattern.ReplaceAllString(html, "")
	return strings.TrimSpace(entityReplacer.Replace(stripped))
}
