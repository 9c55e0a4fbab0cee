package models

import (
	"strings"
	"time"
)

// Header is a single (name, value) pair. Header names are case-insensitive
// and repeatable, so an article carries an ordered slice of pairs rather
// than a map.
type Header struct {
	Name  string `json:"n"`
	Value string `json:"v"`
}

// Headers is the ordered multimap of article headers.
type Headers []Header

// Get returns the value of the first header with the given name
// (case-insensitive), or "" if absent.
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Values returns all values for the given name, in order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr.Value)
		}
	}
	return out
}

// Article is an immutable news article once stored.
type Article struct {
	Headers    Headers
	Body       []byte
	Size       int64
	ReceivedAt time.Time
}

// MessageID returns the article's Message-ID header value.
func (a *Article) MessageID() string {
	return a.Headers.Get("Message-ID")
}

// Newsgroups returns the target newsgroup names parsed from the Newsgroups
// header (comma-separated, whitespace-trimmed, empties dropped).
func (a *Article) Newsgroups() []string {
	v := a.Headers.Get("Newsgroups")
	if v == "" {
		return nil
	}
	var groups []string
	for _, g := range strings.Split(v, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// Path returns the propagation trail: the list of relaying site names from
// the Path header, leftmost most recent.
func (a *Article) Path() []string {
	v := a.Headers.Get("Path")
	if v == "" {
		return nil
	}
	return strings.Split(v, "!")
}

// PrependPath records sitename as the latest relay in the propagation
// trail. The trail is append-only: existing entries are never rewritten.
func (a *Article) PrependPath(sitename string) {
	for i, hdr := range a.Headers {
		if strings.EqualFold(hdr.Name, "Path") {
			a.Headers[i].Value = sitename + "!" + hdr.Value
			return
		}
	}
	a.Headers = append(a.Headers, Header{Name: "Path", Value: sitename})
}

// IsControl reports whether the article carries a Control header.
func (a *Article) IsControl() bool {
	return a.Headers.Get("Control") != ""
}
