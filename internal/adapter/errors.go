package adapter

import "errors"

// errRateLimited is returned by Execute when the rate-limit heuristic fired
// during the run (spec.md §4.3). The dispatch engine checks for it with
// errors.Is.
var errRateLimited = errors.New("adapter: rate limited")

// ErrRateLimited is the exported sentinel dispatch compares against.
var ErrRateLimited = errRateLimited
