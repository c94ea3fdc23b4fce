package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	tagPattern     = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)(\s[^>]*)?>`)
	hrefPattern    = regexp.MustCompile(`\shref="(https?://[^"]*)"`)
	newlinePattern = regexp.MustCompile(`\n{3,}`)
)

// allowedTags may appear in chat replies; everything else is stripped
var allowedTags = map[string]bool{
	"p": true, "br": true, "hr": true,
	"strong": true, "em": true, "b": true, "i": true, "del": true,
	"code": true, "pre": true, "blockquote": true,
	"ul": true, "ol": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "th": true, "td": true,
	"a": true,
}

// ToHTML renders a model reply as HTML for the chat frontend. Raw HTML in
// the reply is escaped; generated tags outside the allow-list are dropped
// and links keep only an http(s) href.
func ToHTML(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}

	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.SkipHTML | blackfriday.Safelink | blackfriday.NofollowLinks,
	})
	html := string(blackfriday.Run([]byte(md),
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak),
		blackfriday.WithRenderer(renderer),
	))

	return sanitize(html)
}

func sanitize(html string) string {
	html = tagPattern.ReplaceAllStringFunc(html, func(tag string) string {
		m := tagPattern.FindStringSubmatch(tag)
		name := strings.ToLower(m[1])
		if !allowedTags[name] {
			return ""
		}
		closing := strings.HasPrefix(tag, "</")
		switch {
		case closing:
			return "</" + name + ">"
		case name == "a":
			if href := hrefPattern.FindStringSubmatch(m[2]); href != nil {
				return `<a href="` + href[1] + `" rel="nofollow noopener" target="_blank">`
			}
			return "<a>"
		case strings.HasSuffix(tag, "/>"):
			return "<" + name + " />"
		default:
			return "<" + name + ">"
		}
	})

	html = newlinePattern.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}
