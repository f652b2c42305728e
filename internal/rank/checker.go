package rank

import (
	"context"
	"fmt"
	"time"
)

// Fetcher retrieves raw search-result HTML for a keyword.
type Fetcher interface {
	Fetch(ctx context.Context, keyword string, variant Variant) (string, error)
}

// Checker runs rank checks against live search result pages.
type Checker struct {
	fetcher Fetcher
	windows Windows
	now     func() time.Time
}

// NewChecker builds a Checker on top of the given fetcher. Zero window
// values fall back to DefaultWindows.
func NewChecker(fetcher Fetcher, windows Windows) *Checker {
	return &Checker{fetcher: fetcher, windows: windows.orDefaults(), now: time.Now}
}

func variantFor(area Area) Variant {
	if area == AreaBlogTab {
		return VariantBlogTab
	}
	return VariantMain
}

// CheckSingleArea fetches the query variant backing area and locates target
// inside it. A fetch failure is returned as-is (retryable); a page where the
// target simply does not appear is a successful check with found=false.
func (c *Checker) CheckSingleArea(ctx context.Context, keyword, target string, area Area) (CheckResult, error) {
	page, err := c.fetcher.Fetch(ctx, keyword, variantFor(area))
	if err != nil {
		return CheckResult{}, err
	}
	res := FindInArea(ExtractLinks(page), target, area, c.windows, c.now())
	observeCheck(res)
	return res, nil
}

// CheckAllAreas performs one combined check of target for keyword across the
// smartblock, main-blog and blog-tab areas. The two underlying fetches run
// concurrently and both must succeed: a failure in either fails the whole
// call with no partial results. Callers wanting resilience against one page
// being blocked should use CheckSingleArea per area instead.
func (c *Checker) CheckAllAreas(ctx context.Context, keyword, target string) (AllResults, error) {
	type page struct {
		variant Variant
		html    string
		err     error
	}

	results := make(chan page, 2)
	for _, v := range []Variant{VariantMain, VariantBlogTab} {
		go func(v Variant) {
			html, err := c.fetcher.Fetch(ctx, keyword, v)
			results <- page{variant: v, html: html, err: err}
		}(v)
	}

	pages := make(map[Variant]string, 2)
	for i := 0; i < 2; i++ {
		p := <-results
		if p.err != nil {
			return AllResults{}, fmt.Errorf("fetch %s results: %w", p.variant, p.err)
		}
		pages[p.variant] = p.html
	}

	at := c.now()
	mainLinks := ExtractLinks(pages[VariantMain])
	tabLinks := ExtractLinks(pages[VariantBlogTab])

	all := AllResults{
		Smartblock: FindInArea(mainLinks, target, AreaSmartblock, c.windows, at),
		MainBlog:   FindInArea(mainLinks, target, AreaMainBlog, c.windows, at),
		BlogTab:    FindInArea(tabLinks, target, AreaBlogTab, c.windows, at),
	}
	observeCheck(all.Smartblock)
	observeCheck(all.MainBlog)
	observeCheck(all.BlogTab)
	return all, nil
}
