package server

import (
	"github.com/hanbitlabs/rankwatch/internal/rank"
	"github.com/hanbitlabs/rankwatch/internal/store"
)

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateTrackerRequest struct {
	BlogURL       string `json:"blog_url"`
	TargetKeyword string `json:"target_keyword"`
	PostTitle     string `json:"post_title"`
}

type CheckRequest struct {
	Keyword string `json:"keyword"`
	BlogURL string `json:"blog_url"`
}

// TrackerResponse is a tracker plus, when requested, its rank history.
type TrackerResponse struct {
	store.Tracker
	History []store.HistoryEntry `json:"history,omitempty"`
}

// RefreshResponse reports the outcome of one tracker re-check.
type RefreshResponse struct {
	Tracker store.Tracker   `json:"tracker"`
	Results rank.AllResults `json:"results"`
	Change  rank.Change     `json:"change"`
}

// RefreshAllItem is one entry of a bulk refresh; Error carries the failure
// message when that tracker's check could not complete.
type RefreshAllItem struct {
	TrackerID string           `json:"tracker_id"`
	Result    *RefreshResponse `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// HTTPError mirrors the JSON error envelope of the unified error handler.
type HTTPError struct {
	Error string `json:"error"`
}

// checkFailedMessage distinguishes a broken check (fetch failure) from a
// completed check that found nothing; the two must never be conflated.
const checkFailedMessage = "ranking check failed, try again later"
