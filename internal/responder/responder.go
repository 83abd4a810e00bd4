// Package responder provides the stock netcat.Responder implementations
// the CLI offers: scripted replies, pattern waits, banner grabbing and
// an interactive stdin/stdout responder.
package responder

import (
	"fmt"
	"io"
	"regexp"

	"ctfnc/netcat"
)

// Banner stops on the first burst.  The session output is the banner
// plus anything that trickles in during the final drain.
func Banner() netcat.Responder {
	return func(string) (string, bool) { return "", false }
}

// Script answers successive bursts with lines in order and stops once
// they run out.
func Script(lines []string) netcat.Responder {
	next := 0
	return func(string) (string, bool) {
		if next >= len(lines) {
			return "", false
		}
		line := lines[next]
		next++
		return line, true
	}
}

// Until keeps answering with reply until a burst matches pattern, then
// stops.  Useful for "press enter until the flag shows up" services.
func Until(pattern *regexp.Regexp, reply string) netcat.Responder {
	return func(input string) (string, bool) {
		if pattern.MatchString(input) {
			return "", false
		}
		return reply, true
	}
}

// Then runs first until it stops, then hands every later burst to
// second.  The burst that stopped first is passed on to second.
func Then(first, second netcat.Responder) netcat.Responder {
	done := false
	return func(input string) (string, bool) {
		if !done {
			if reply, ok := first(input); ok {
				return reply, true
			}
			done = true
		}
		return second(input)
	}
}

// Tee copies every burst to w before handing it to next.
func Tee(w io.Writer, next netcat.Responder) netcat.Responder {
	return func(input string) (string, bool) {
		fmt.Fprint(w, input)
		return next(input)
	}
}
