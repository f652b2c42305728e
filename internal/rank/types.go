package rank

import "time"

// Area identifies a logical region of a search result page.
type Area string

const (
	// AreaSmartblock is the instant-answer style panel at the top of the
	// unified search page.
	AreaSmartblock Area = "smartblock"
	// AreaMainBlog is the organic blog list on the unified search page,
	// below the smartblock.
	AreaMainBlog Area = "blog"
	// AreaBlogTab is the dedicated blog-only results page.
	AreaBlogTab Area = "blog_tab"
)

// DisplayName returns the human-readable label used in API responses.
func (a Area) DisplayName() string {
	switch a {
	case AreaSmartblock:
		return "스마트블록"
	case AreaMainBlog:
		return "블로그 메인"
	case AreaBlogTab:
		return "블로그 탭"
	default:
		return string(a)
	}
}

// TitlePlaceholder is used when no title could be recovered for a result link.
const TitlePlaceholder = "제목 없음"

// CheckResult is the outcome of locating one target URL inside one area of
// one search response. Rank is nil exactly when Found is false; when present
// it is 1-based within the area.
type CheckResult struct {
	Found     bool      `json:"found"`
	Rank      *int      `json:"rank"`
	Title     string    `json:"title,omitempty"`
	Area      Area      `json:"area"`
	AreaName  string    `json:"area_name"`
	CheckedAt time.Time `json:"checked_at"`
}

// AllResults aggregates one logical check across every tracked area. The
// three results are produced together from a single CheckAllAreas call; the
// smartblock and main-blog areas share one fetch, the blog tab uses another.
type AllResults struct {
	Smartblock CheckResult `json:"smartblock"`
	MainBlog   CheckResult `json:"main_blog"`
	BlogTab    CheckResult `json:"blog_tab"`
}

// Best returns the result preferred for display and persistence when the
// target is visible in several areas at once: smartblock > main blog > blog tab.
// When nothing is found it returns the main-blog result (found=false).
func (r AllResults) Best() CheckResult {
	if r.Smartblock.Found {
		return r.Smartblock
	}
	if r.MainBlog.Found {
		return r.MainBlog
	}
	if r.BlogTab.Found {
		return r.BlogTab
	}
	return r.MainBlog
}

// Link is one extracted result candidate, in page order.
type Link struct {
	URL   string
	Title string
}
