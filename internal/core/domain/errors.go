package domain

import "errors"

var (
	// ErrNoActiveProxies is returned when the pool has nothing to hand out.
	ErrNoActiveProxies = errors.New("no active proxies")
	// ErrChallengeDetected means the page served a bot challenge instead of results.
	ErrChallengeDetected = errors.New("challenge page detected")
	// ErrTimeout covers page load and result container waits that hit their ceiling.
	ErrTimeout = errors.New("timed out")
	// ErrExtractionEmpty means the page loaded but yielded no records.
	ErrExtractionEmpty = errors.New("extraction returned no records")
	// ErrDriverUnavailable means the browser could not be started at all.
	ErrDriverUnavailable = errors.New("browser driver unavailable")
	// ErrStoreWrite wraps result persistence failures. It never blacklists a proxy.
	ErrStoreWrite = errors.New("store write failed")
	ErrIllegalTransition = errors.New("illegal task transition")
)
