package events

import "time"

// AccessCheckStart is emitted before a checker executes. ID pairs it with the
// matching AccessCheckFinish.
type AccessCheckStart struct {
	ID      uint64
	Checker string
	Kind    string
}

// AccessCheckFinish is emitted after a checker returns. Err is nil when the
// check passed.
type AccessCheckFinish struct {
	ID       uint64
	Checker  string
	Kind     string
	Err      error
	Duration time.Duration
}

// RSSFetchStart is emitted before a required selection set is fetched.
type RSSFetchStart struct {
	ID          uint64
	TypeName    string
	Attribution string
	ForChecker  bool
}

// RSSFetchFinish is emitted after a required selection set fetch completes.
type RSSFetchFinish struct {
	ID          uint64
	TypeName    string
	Attribution string
	ForChecker  bool
	Err         error
	Duration    time.Duration
}
