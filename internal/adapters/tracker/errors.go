package tracker

import "errors"

var (
	// ErrUpstream is returned when the tracker answers with a non-2xx status.
	ErrUpstream = errors.New("tracker upstream error")
	// ErrDecode is returned when a tracker response cannot be decoded.
	ErrDecode = errors.New("tracker response decode failed")
	// ErrInvalidURL is returned by New for an unusable base URL.
	ErrInvalidURL = errors.New("invalid tracker url")
)
