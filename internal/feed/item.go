// Package feed defines the values shared by the feed controller, the planner,
// and the hosting view: displayable items and scroll-container geometry.
package feed

import (
	"time"
	"unicode/utf8"
)

// Item is a single displayable message. Items are owned by the source that
// produced them; consumers only read them.
type Item struct {
	ID       string
	Seq      int64     // ordering key, monotonically increasing per conversation
	Created  time.Time // creation time, secondary ordering key
	Author   string
	Body     string
	HasImage bool // message carries an embedded image
}

// ContentLength returns the textual length of the body in runes.
func (it Item) ContentLength() int {
	return utf8.RuneCountInString(it.Body)
}

