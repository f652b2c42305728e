package rank

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// blogPostPattern matches canonical blog post links as they appear anywhere
// in the page source (anchors, script payloads, data attributes).
var blogPostPattern = regexp.MustCompile(`https?://(?:m\.)?blog\.naver\.com/[0-9A-Za-z._%-]+/[0-9]+`)

var (
	titleAttrPattern = regexp.MustCompile(`title="([^"]+)"`)
	titleJSONPattern = regexp.MustCompile(`"title"\s*:\s*"([^"]+)"`)
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
)

// titleWindow bounds how far around a matched link the raw source is scanned
// when recovering a title for a link that has no usable anchor.
const titleWindow = 500

// Windows defines the heuristic index cutoffs that slice the flat extracted
// link list into logical page areas. The page carries no single
// authoritative area marker, so boundaries are positional: the first
// Smartblock links of the unified page form the smartblock area, the next
// MainBlog links the organic blog area, and the first BlogTab links of the
// blog-tab page form that area.
type Windows struct {
	Smartblock int
	MainBlog   int
	BlogTab    int
}

// DefaultWindows mirrors the observed layout of the unified search page:
// smartblock occupies roughly the first ten results, the organic blog list
// the following twenty, and the blog tab is scanned to a depth of 100.
var DefaultWindows = Windows{Smartblock: 10, MainBlog: 20, BlogTab: 100}

func (w Windows) orDefaults() Windows {
	if w.Smartblock <= 0 {
		w.Smartblock = DefaultWindows.Smartblock
	}
	if w.MainBlog <= 0 {
		w.MainBlog = DefaultWindows.MainBlog
	}
	if w.BlogTab <= 0 {
		w.BlogTab = DefaultWindows.BlogTab
	}
	return w
}

// ExtractLinks scans raw search-page HTML for blog post links, in source
// order, de-duplicated by normalized URL (first occurrence wins). Titles are
// recovered best-effort: the enclosing anchor's text or title attribute when
// the link appears in markup, otherwise a bounded window of surrounding
// source is searched; when everything fails the title is TitlePlaceholder.
// Extraction is defensive and never fails: a page with no matching links
// yields an empty list.
func ExtractLinks(rawHTML string) []Link {
	anchorTitles := anchorTitleIndex(rawHTML)

	matches := blogPostPattern.FindAllStringIndex(rawHTML, -1)
	links := make([]Link, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		raw := rawHTML[m[0]:m[1]]
		key := NormalizeBlogURL(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		title := anchorTitles[key]
		if title == "" {
			title = windowTitle(rawHTML, m[0], m[1])
		}
		if title == "" {
			title = TitlePlaceholder
		}
		links = append(links, Link{URL: raw, Title: title})
	}
	return links
}

// anchorTitleIndex maps normalized blog URLs to the text (or title attribute)
// of the anchor that wraps them. A page that does not parse as a document is
// not an error; titles simply fall back to the window scan.
func anchorTitleIndex(rawHTML string) map[string]string {
	titles := make(map[string]string)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return titles
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !blogPostPattern.MatchString(href) {
			return
		}
		key := NormalizeBlogURL(blogPostPattern.FindString(href))
		if key == "" {
			return
		}
		if _, ok := titles[key]; ok {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = strings.TrimSpace(sel.AttrOr("title", ""))
		}
		if title != "" {
			titles[key] = title
		}
	})
	return titles
}

// windowTitle searches the raw source around a matched link for a
// title-labelled attribute or JSON field.
func windowTitle(rawHTML string, start, end int) string {
	lo := start - titleWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + titleWindow
	if hi > len(rawHTML) {
		hi = len(rawHTML)
	}
	window := rawHTML[lo:hi]

	for _, pat := range []*regexp.Regexp{titleAttrPattern, titleJSONPattern} {
		if m := pat.FindStringSubmatch(window); m != nil {
			title := strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(m[1], "")))
			if title != "" {
				return title
			}
		}
	}
	return ""
}

// FindInArea locates target inside the given area's slice of the extracted
// link list and reports its 1-based rank there, or found=false when the
// target does not appear within the area's scan window. links must be the
// output of ExtractLinks for the matching query variant: the unified page
// feeds the smartblock and main-blog areas, the blog-tab page feeds the
// blog-tab area.
func FindInArea(links []Link, target string, area Area, w Windows, at time.Time) CheckResult {
	w = w.orDefaults()

	var lo, hi int
	switch area {
	case AreaSmartblock:
		lo, hi = 0, w.Smartblock
	case AreaMainBlog:
		lo, hi = w.Smartblock, w.Smartblock+w.MainBlog
	case AreaBlogTab:
		lo, hi = 0, w.BlogTab
	default:
		lo, hi = 0, len(links)
	}
	if hi > len(links) {
		hi = len(links)
	}

	res := CheckResult{Area: area, AreaName: area.DisplayName(), CheckedAt: at}
	for i := lo; i < hi; i++ {
		if !SameBlogURL(links[i].URL, target) {
			continue
		}
		rank := i - lo + 1
		res.Found = true
		res.Rank = &rank
		res.Title = links[i].Title
		break
	}
	return res
}
