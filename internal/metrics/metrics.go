// Package metrics counts what a session did on the wire: connections,
// drain reads, replies and the bytes behind them.  The CLI prints the
// totals with --stats.
//
// A nil *Collector accepts every call and reports zeros, so components
// take one unconditionally.
package metrics

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

type counter int

const (
	connsActive counter = iota
	connsTotal
	dialRetries
	drains
	replies
	bytesIn
	bytesOut
	writeErrors
	longestDrain // nanoseconds
	drainTime    // nanoseconds, summed

	numCounters
)

// Collector is safe for concurrent use.
type Collector struct {
	started  time.Time
	counts   [numCounters]atomic.Int64
	lastFail atomic.Pointer[failure]
}

type failure struct {
	at  time.Time
	msg string
}

// New returns a Collector whose clock starts now.
func New() *Collector {
	return &Collector{started: time.Now()}
}

func (c *Collector) add(k counter, n int64) {
	if c != nil {
		c.counts[k].Add(n)
	}
}

func (c *Collector) load(k counter) int64 {
	if c == nil {
		return 0
	}
	return c.counts[k].Load()
}

// raise stores v in k if it is larger than what k holds.
func (c *Collector) raise(k counter, v int64) {
	if c == nil {
		return
	}
	for {
		cur := c.counts[k].Load()
		if v <= cur || c.counts[k].CompareAndSwap(cur, v) {
			return
		}
	}
}

// ConnectionOpened counts a connection that is ready for a session.
func (c *Collector) ConnectionOpened() {
	c.add(connsActive, 1)
	c.add(connsTotal, 1)
}

// ConnectionClosed releases one active connection.
func (c *Collector) ConnectionClosed() { c.add(connsActive, -1) }

// DialRetry counts a failed dial that will be tried again.
func (c *Collector) DialRetry() { c.add(dialRetries, 1) }

// Drained counts one finished drain read that collected n bytes over
// took, including the trailing idle wait.
func (c *Collector) Drained(n int64, took time.Duration) {
	c.add(drains, 1)
	c.add(bytesIn, n)
	c.add(drainTime, int64(took))
	c.raise(longestDrain, int64(took))
}

// ReplySent counts one line written, n bytes with its newline.
func (c *Collector) ReplySent(n int64) {
	c.add(replies, 1)
	c.add(bytesOut, n)
}

// RecordError counts a failure that did not stop the session and keeps
// its message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.add(writeErrors, 1)
	c.lastFail.Store(&failure{at: time.Now(), msg: msg})
}

func (c *Collector) ActiveConnections() int64 { return c.load(connsActive) }
func (c *Collector) TotalConnections() int64  { return c.load(connsTotal) }
func (c *Collector) DialRetries() int64       { return c.load(dialRetries) }
func (c *Collector) Drains() int64            { return c.load(drains) }
func (c *Collector) Replies() int64           { return c.load(replies) }
func (c *Collector) TotalBytesIn() int64      { return c.load(bytesIn) }
func (c *Collector) TotalBytesOut() int64     { return c.load(bytesOut) }
func (c *Collector) ErrorCount() int64        { return c.load(writeErrors) }

// LongestDrain is the slowest single drain read so far.
func (c *Collector) LongestDrain() time.Duration { return time.Duration(c.load(longestDrain)) }

// Snapshot is the --stats report.
type Snapshot struct {
	Elapsed           string `json:"elapsed"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	DialRetries       int64  `json:"dial_retries"`
	Drains            int64  `json:"drains"`
	DrainTime         string `json:"drain_time"`
	LongestDrain      string `json:"longest_drain"`
	Replies           int64  `json:"replies"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	Errors            int64  `json:"errors"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorAt       string `json:"last_error_at,omitempty"`
}

// Snapshot reads every counter.  Counters are read one at a time, so a
// snapshot taken mid-session may mix adjacent moments.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}

	ms := func(d time.Duration) string { return d.Truncate(time.Millisecond).String() }
	s := Snapshot{
		Elapsed:           ms(time.Since(c.started)),
		ConnectionsActive: c.ActiveConnections(),
		ConnectionsTotal:  c.TotalConnections(),
		DialRetries:       c.DialRetries(),
		Drains:            c.Drains(),
		DrainTime:         ms(time.Duration(c.load(drainTime))),
		LongestDrain:      ms(c.LongestDrain()),
		Replies:           c.Replies(),
		BytesIn:           c.TotalBytesIn(),
		BytesOut:          c.TotalBytesOut(),
		Errors:            c.ErrorCount(),
	}
	if f := c.lastFail.Load(); f != nil {
		s.LastError = f.msg
		s.LastErrorAt = f.at.Format(time.RFC3339)
	}
	return s
}

// JSON renders the snapshot, indented, for humans and jq alike.
func (c *Collector) JSON() string {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
