package api

import "errors"

var (
	ErrNotFound    = errors.New("no data for this symbol/date")
	ErrRateLimited = errors.New("rate limited by upstream API")
	ErrAuthFailed  = errors.New("authentication failed")
)
