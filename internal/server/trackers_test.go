package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/hanbitlabs/rankwatch/internal/rank"
	"github.com/hanbitlabs/rankwatch/internal/store"
)

var testLimits = map[string]int{"free": 3, "enterprise": -1}

type stubChecker struct {
	results rank.AllResults
	err     error
	calls   int
}

func (s *stubChecker) CheckAllAreas(ctx context.Context, keyword, target string) (rank.AllResults, error) {
	s.calls++
	return s.results, s.err
}

func notFoundResults(at time.Time) rank.AllResults {
	mk := func(area rank.Area) rank.CheckResult {
		return rank.CheckResult{Area: area, AreaName: area.DisplayName(), CheckedAt: at}
	}
	return rank.AllResults{
		Smartblock: mk(rank.AreaSmartblock),
		MainBlog:   mk(rank.AreaMainBlog),
		BlogTab:    mk(rank.AreaBlogTab),
	}
}

func foundInSmartblock(at time.Time, position int) rank.AllResults {
	all := notFoundResults(at)
	all.Smartblock.Found = true
	all.Smartblock.Rank = &position
	all.Smartblock.Title = "찾은 글"
	return all
}

func newHandler(t *testing.T, checker RankChecker) (*TrackersHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &TrackersHandler{Store: &store.Store{DB: db}, Checker: checker, Limits: testLimits}, mock
}

func trackerRow(currentRank interface{}, currentArea interface{}, lastChecked interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "blog_url", "target_keyword", "post_title", "current_rank", "current_area", "last_checked", "created_at"}).
		AddRow("tr-1", "user-1", "https://blog.naver.com/myblog/2220001", "키워드 분석", "", currentRank, currentArea, lastChecked, time.Now())
}

func expectQuota(mock sqlmock.Sqlmock, plan string, count int) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT plan FROM users WHERE id=$1`)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"plan"}).AddRow(plan))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM trackers WHERE user_id=$1`)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func expectRecordCheck(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tracker_history`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE trackers SET`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func newRequestContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")
	return ctx, rec
}

func TestCreateTrackerQuotaDenied(t *testing.T) {
	checker := &stubChecker{}
	h, mock := newHandler(t, checker)

	expectQuota(mock, "free", 3)

	ctx, rec := newRequestContext(t, http.MethodPost, "/api/trackers",
		`{"blog_url":"https://blog.naver.com/myblog/2220001","target_keyword":"키워드 분석"}`)

	if err := h.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Quota store.Quota `json:"quota"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Quota.CanAdd {
		t.Fatalf("expected can_add=false, got %+v", resp.Quota)
	}
	if checker.calls != 0 {
		t.Fatalf("checker must not run when quota is denied")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateTrackerRunsInitialCheck(t *testing.T) {
	checker := &stubChecker{results: notFoundResults(time.Now())}
	h, mock := newHandler(t, checker)

	expectQuota(mock, "free", 1)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO trackers (id, user_id, blog_url, target_keyword, post_title) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`)).
		WithArgs(sqlmock.AnyArg(), "user-1", "https://blog.naver.com/myblog/2220001", "키워드 분석", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	expectRecordCheck(mock)

	ctx, rec := newRequestContext(t, http.MethodPost, "/api/trackers",
		`{"blog_url":"https://blog.naver.com/myblog/2220001","target_keyword":"키워드 분석"}`)

	if err := h.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var tr store.Tracker
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tr.CurrentRank != nil {
		t.Fatalf("fresh tracker should have null rank when not found, got %+v", tr)
	}
	if checker.calls != 1 {
		t.Fatalf("expected one initial check, got %d", checker.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRefreshTrackerFirstAppearance(t *testing.T) {
	checker := &stubChecker{results: foundInSmartblock(time.Now(), 3)}
	h, mock := newHandler(t, checker)

	mock.ExpectQuery(`SELECT .+ FROM trackers WHERE id=\$1 AND user_id=\$2`).
		WithArgs("tr-1", "user-1").
		WillReturnRows(trackerRow(nil, nil, nil))
	expectRecordCheck(mock)

	ctx, rec := newRequestContext(t, http.MethodPost, "/api/trackers/tr-1/refresh", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("tr-1")

	if err := h.refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp RefreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Change.Direction != rank.DirectionNew || resp.Change.Change != 0 {
		t.Fatalf("expected first-appearance change, got %+v", resp.Change)
	}
	if resp.Tracker.CurrentRank == nil || *resp.Tracker.CurrentRank != 3 {
		t.Fatalf("tracker rank not updated: %+v", resp.Tracker)
	}
	if resp.Tracker.CurrentArea == nil || *resp.Tracker.CurrentArea != string(rank.AreaSmartblock) {
		t.Fatalf("tracker area not updated: %+v", resp.Tracker)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRefreshTrackerFetchFailureIsBadGateway(t *testing.T) {
	checker := &stubChecker{err: &rank.StatusError{Code: http.StatusTooManyRequests}}
	h, mock := newHandler(t, checker)

	mock.ExpectQuery(`SELECT .+ FROM trackers WHERE id=\$1 AND user_id=\$2`).
		WithArgs("tr-1", "user-1").
		WillReturnRows(trackerRow(5, "blog", time.Now()))

	ctx, _ := newRequestContext(t, http.MethodPost, "/api/trackers/tr-1/refresh", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("tr-1")

	err := h.refresh(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
	if he.Message != checkFailedMessage {
		t.Fatalf("expected %q, got %v", checkFailedMessage, he.Message)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCheckHandlerDistinguishesNotRankedFromFailure(t *testing.T) {
	// A completed check with no match is 200 with found=false everywhere.
	ok := &CheckHandler{Checker: &stubChecker{results: notFoundResults(time.Now())}}
	ctx, rec := newRequestContext(t, http.MethodPost, "/api/rank/check",
		`{"keyword":"키워드 분석","blog_url":"blog.naver.com/myblog/2220001"}`)
	if err := ok.check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var all rank.AllResults
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if all.Smartblock.Found || all.MainBlog.Found || all.BlogTab.Found {
		t.Fatalf("expected not ranked anywhere: %+v", all)
	}

	// A broken fetch is a 502, never a silent "not ranked".
	broken := &CheckHandler{Checker: &stubChecker{err: &rank.TransportError{URL: "x", Err: context.DeadlineExceeded}}}
	ctx, _ = newRequestContext(t, http.MethodPost, "/api/rank/check",
		`{"keyword":"키워드 분석","blog_url":"blog.naver.com/myblog/2220001"}`)
	err := broken.check(ctx)
	he, ok2 := err.(*echo.HTTPError)
	if !ok2 || he.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
}
