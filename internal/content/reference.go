package content

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	rangeRef   = regexp.MustCompile(`^(.+?)\s*(\d+):(\d+)\s*-\s*(\d+)$`)
	verseRef   = regexp.MustCompile(`^(.+?)\s*(\d+):(\d+)$`)
	chapterRef = regexp.MustCompile(`^(.+?)\s+(\d+)$`)
)

// Reference is a parsed scripture reference. Zero verses mean the whole chapter.
type Reference struct {
	Book       string
	Chapter    int
	StartVerse int
	EndVerse   int
}

// ParseReference accepts "John 3:16", "Genesis 1:1-5" and "Psalm 23".
func ParseReference(s string) (Reference, error) {
	s = strings.Join(strings.Fields(s), " ")

	if m := rangeRef.FindStringSubmatch(s); m != nil {
		start, end := atoi(m[3]), atoi(m[4])
		if end < start {
			return Reference{}, fmt.Errorf("%w: %q", ErrBadReference, s)
		}
		return Reference{Book: strings.TrimSpace(m[1]), Chapter: atoi(m[2]), StartVerse: start, EndVerse: end}, nil
	}
	if m := verseRef.FindStringSubmatch(s); m != nil {
		v := atoi(m[3])
		return Reference{Book: strings.TrimSpace(m[1]), Chapter: atoi(m[2]), StartVerse: v, EndVerse: v}, nil
	}
	if m := chapterRef.FindStringSubmatch(s); m != nil {
		return Reference{Book: strings.TrimSpace(m[1]), Chapter: atoi(m[2])}, nil
	}
	return Reference{}, fmt.Errorf("%w: %q", ErrBadReference, s)
}

// VerseRange returns the inclusive verse bounds to query.
func (r Reference) VerseRange() (int, int) {
	if r.StartVerse == 0 {
		return 1, math.MaxInt32
	}
	return r.StartVerse, r.EndVerse
}

func (r Reference) String() string {
	switch {
	case r.StartVerse == 0:
		return fmt.Sprintf("%s %d", r.Book, r.Chapter)
	case r.StartVerse == r.EndVerse:
		return fmt.Sprintf("%s %d:%d", r.Book, r.Chapter, r.StartVerse)
	}
	return fmt.Sprintf("%s %d:%d-%d", r.Book, r.Chapter, r.StartVerse, r.EndVerse)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
