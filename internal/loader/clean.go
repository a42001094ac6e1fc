package loader

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/shiraberu/pkg/utils"
)

// Pre-compiled regular expressions for HTML cleanup.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	navTag            = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	footerTag         = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	asideTag          = regexp.MustCompile(`(?is)<aside[^>]*>.*?</aside>`)
	formTag           = regexp.MustCompile(`(?is)<form[^>]*>.*?</form>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	htmlLangAttr      = regexp.MustCompile(`(?is)<html[^>]*\blang=["']?([a-zA-Z-]+)`)
	publishedMeta     = regexp.MustCompile(`(?is)<meta[^>]*(?:property|name)=["'](?:article:published_time|date|datePublished|publishdate)["'][^>]*content=["']([^"']+)["']`)
	publishedMetaRev  = regexp.MustCompile(`(?is)<meta[^>]*content=["']([^"']+)["'][^>]*(?:property|name)=["'](?:article:published_time|date|datePublished|publishdate)["']`)
)

// ExtractTitle returns the page <title>, falling back to fallback when the
// document has none.
func ExtractTitle(content, fallback string) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) > 1 {
		title := strings.TrimSpace(html.UnescapeString(matches[1]))
		if title != "" {
			return title
		}
	}
	return fallback
}

// ExtractLanguage returns the <html lang> attribute's primary subtag, or "".
func ExtractLanguage(content string) string {
	matches := htmlLangAttr.FindStringSubmatch(content)
	if len(matches) > 1 {
		lang := strings.ToLower(matches[1])
		if i := strings.Index(lang, "-"); i > 0 {
			lang = lang[:i]
		}
		return lang
	}
	return ""
}

// ExtractPublishedDate parses common published-date meta tags. Returns nil
// when no parseable date is present.
func ExtractPublishedDate(content string) *time.Time {
	var raw string
	if m := publishedMeta.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else if m := publishedMetaRev.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	}
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// CleanHTML strips navigation, boilerplate, and markup from a page and
// returns readable text with normalized whitespace.
func CleanHTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = navTag.ReplaceAllString(content, "")
	content = footerTag.ReplaceAllString(content, "")
	content = asideTag.ReplaceAllString(content, "")
	content = formTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	return utils.NormalizeWhitespace(content)
}
