package rank

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// serpPage builds a synthetic unified-search page with n distinct blog links
// in order.
func serpPage(n int) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"results\">")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<a href="https://blog.naver.com/user%d/%d">포스트 %d</a>`, i, 1000+i, i)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func TestExtractLinksOrderAndDedup(t *testing.T) {
	t.Parallel()
	page := `<html><body>
		<a href="https://blog.naver.com/alpha/100">첫 번째 글</a>
		<a href="https://blog.naver.com/beta/200">두 번째 글</a>
		<a href="http://www.blog.naver.com/alpha/100?from=dup">중복 링크</a>
		<a href="https://blog.naver.com/gamma/300"></a>
	</body></html>`

	links := ExtractLinks(page)
	if len(links) != 3 {
		t.Fatalf("expected 3 deduplicated links, got %d: %+v", len(links), links)
	}
	if NormalizeBlogURL(links[0].URL) != "blog.naver.com/alpha/100" {
		t.Fatalf("first link out of order: %q", links[0].URL)
	}
	if links[0].Title != "첫 번째 글" {
		t.Fatalf("anchor title not recovered: %q", links[0].Title)
	}
	if links[2].Title != TitlePlaceholder {
		t.Fatalf("expected placeholder title for empty anchor, got %q", links[2].Title)
	}
}

func TestExtractLinksTitleFromScriptWindow(t *testing.T) {
	t.Parallel()
	// Links embedded in script payloads carry no anchor; the title is
	// recovered from the surrounding source window.
	page := `<html><body><script>
		var items = [{"url":"https://blog.naver.com/scripted/42","title":"스크립트 속 제목"}];
	</script></body></html>`

	links := ExtractLinks(page)
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].Title != "스크립트 속 제목" {
		t.Fatalf("window title not recovered: %q", links[0].Title)
	}
}

func TestExtractLinksEmptyPage(t *testing.T) {
	t.Parallel()
	if links := ExtractLinks("<html><body>no results here</body></html>"); len(links) != 0 {
		t.Fatalf("expected no links, got %+v", links)
	}
	if links := ExtractLinks(""); len(links) != 0 {
		t.Fatalf("expected no links for empty input, got %+v", links)
	}
}

func TestFindInAreaWindowBoundaries(t *testing.T) {
	t.Parallel()
	links := ExtractLinks(serpPage(35))
	if len(links) != 35 {
		t.Fatalf("expected 35 links, got %d", len(links))
	}
	now := time.Now()

	// Index 0 lands in the smartblock at rank 1.
	res := FindInArea(links, "blog.naver.com/user0/1000", AreaSmartblock, DefaultWindows, now)
	if !res.Found || res.Rank == nil || *res.Rank != 1 {
		t.Fatalf("smartblock: got %+v", res)
	}

	// Index 15 is outside the smartblock but in the main blog area at
	// rank 6 (15 - 10 + 1).
	target := "blog.naver.com/user15/1015"
	if res := FindInArea(links, target, AreaSmartblock, DefaultWindows, now); res.Found {
		t.Fatalf("index 15 should not be in smartblock: %+v", res)
	}
	res = FindInArea(links, target, AreaMainBlog, DefaultWindows, now)
	if !res.Found || res.Rank == nil || *res.Rank != 6 {
		t.Fatalf("main blog: got %+v", res)
	}

	// Index 32 is beyond both unified-page windows.
	target = "blog.naver.com/user32/1032"
	if res := FindInArea(links, target, AreaSmartblock, DefaultWindows, now); res.Found {
		t.Fatalf("index 32 found in smartblock: %+v", res)
	}
	if res := FindInArea(links, target, AreaMainBlog, DefaultWindows, now); res.Found {
		t.Fatalf("index 32 found in main blog: %+v", res)
	}
	// But the blog-tab window reaches it.
	res = FindInArea(links, target, AreaBlogTab, DefaultWindows, now)
	if !res.Found || res.Rank == nil || *res.Rank != 33 {
		t.Fatalf("blog tab: got %+v", res)
	}
}

func TestFindInAreaRankInvariant(t *testing.T) {
	t.Parallel()
	links := ExtractLinks(serpPage(5))
	now := time.Now()
	for _, target := range []string{"blog.naver.com/user2/1002", "blog.naver.com/nobody/999"} {
		for _, area := range []Area{AreaSmartblock, AreaMainBlog, AreaBlogTab} {
			res := FindInArea(links, target, area, DefaultWindows, now)
			if res.Found != (res.Rank != nil) {
				t.Fatalf("found/rank mismatch: %+v", res)
			}
			if res.Rank != nil && *res.Rank < 1 {
				t.Fatalf("rank below 1: %+v", res)
			}
			if res.AreaName == "" {
				t.Fatalf("missing area name: %+v", res)
			}
		}
	}
}
