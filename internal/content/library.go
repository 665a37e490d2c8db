// Package content provides read-only access to lessons, hymnbooks and
// bibles stored under a content directory.
package content

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup key has no matching record.
	ErrNotFound = errors.New("content not found")
	// ErrUnavailable is returned when a content source is missing or unreadable.
	ErrUnavailable = errors.New("content source unavailable")
	// ErrBadReference is returned for scripture references that do not parse.
	ErrBadReference = errors.New("unrecognized scripture reference")
)

const (
	lessonsDir   = "lessons"
	hymnbooksDir = "hymnbooks"
	biblesDir    = "bibles"
)

// Library loads content files on first use and keeps them in memory.
// Concurrent first loads of the same file are coalesced.
type Library struct {
	dir   string
	group singleflight.Group

	mu      sync.RWMutex
	lessons map[string][]map[string]any
	hymns   map[string][]domain.Hymn
	bibles  map[string]*sql.DB
}

// NewLibrary returns a Library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{
		dir:     dir,
		lessons: make(map[string][]map[string]any),
		hymns:   make(map[string][]domain.Hymn),
		bibles:  make(map[string]*sql.DB),
	}
}

// CurrentLesson returns the lesson for the week containing now.
func (l *Library) CurrentLesson(ctx context.Context, class catalog.Class, now time.Time) (*domain.Lesson, error) {
	lessons, err := l.loadLessons(ctx, class)
	if err != nil {
		return nil, err
	}

	week := WeekIndex(class.AnchorDate(), now)
	if week < 0 || week >= len(lessons) {
		return nil, fmt.Errorf("%w: week %d of %s", ErrNotFound, week, class.Name)
	}

	fields := lessons[week]
	return &domain.Lesson{
		Class:  class.Key,
		Week:   week,
		Title:  lessonTitle(fields),
		Fields: fields,
	}, nil
}

// Hymn returns the hymn with the given number from book.
func (l *Library) Hymn(ctx context.Context, book catalog.Source, number string) (*domain.Hymn, error) {
	hymns, err := l.loadHymns(ctx, book)
	if err != nil {
		return nil, err
	}
	number = strings.TrimSpace(number)
	for i := range hymns {
		if hymns[i].Number == number {
			h := hymns[i]
			return &h, nil
		}
	}
	return nil, fmt.Errorf("%w: hymn %s in %s", ErrNotFound, number, book.Name)
}

// Passage looks up a scripture reference in bible.
func (l *Library) Passage(ctx context.Context, bible catalog.Source, reference string) (*domain.Passage, error) {
	ref, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}

	db, err := l.openBible(bible)
	if err != nil {
		return nil, err
	}

	verses, err := queryVerses(ctx, db, `book_name_text = ? COLLATE NOCASE`, ref.Book, ref)
	if err != nil {
		return nil, err
	}
	if len(verses) == 0 {
		verses, err = queryVerses(ctx, db, `book_name_text LIKE ?`, "%"+ref.Book+"%", ref)
		if err != nil {
			return nil, err
		}
	}
	if len(verses) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	return &domain.Passage{Reference: strings.TrimSpace(reference), Verses: verses}, nil
}

// Close releases open bible databases.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for key, db := range l.bibles {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bible %s: %w", key, err))
		}
		delete(l.bibles, key)
	}
	return errors.Join(errs...)
}

func queryVerses(ctx context.Context, db *sql.DB, bookClause, bookArg string, ref Reference) ([]domain.Verse, error) {
	query := `SELECT verse, text FROM bible_verses WHERE ` + bookClause +
		` AND chapter = ? AND verse >= ? AND verse <= ? ORDER BY verse`

	first, last := ref.VerseRange()
	rows, err := db.QueryContext(ctx, query, bookArg, ref.Chapter, first, last)
	if err != nil {
		return nil, fmt.Errorf("query verses: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close verse rows", "error", closeErr)
		}
	}()

	var verses []domain.Verse
	for rows.Next() {
		var v domain.Verse
		if err := rows.Scan(&v.Number, &v.Text); err != nil {
			return nil, fmt.Errorf("scan verse: %w", err)
		}
		verses = append(verses, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verses: %w", err)
	}
	return verses, nil
}

func (l *Library) openBible(bible catalog.Source) (*sql.DB, error) {
	l.mu.RLock()
	db, ok := l.bibles[bible.Key]
	l.mu.RUnlock()
	if ok {
		return db, nil
	}

	v, err, _ := l.group.Do("bible:"+bible.Key, func() (any, error) {
		path := filepath.Join(l.dir, biblesDir, bible.File)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, bible.File, err)
		}
		db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, bible.File, err)
		}
		db.SetMaxOpenConns(4)

		l.mu.Lock()
		l.bibles[bible.Key] = db
		l.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func (l *Library) loadLessons(ctx context.Context, class catalog.Class) ([]map[string]any, error) {
	l.mu.RLock()
	lessons, ok := l.lessons[class.Key]
	l.mu.RUnlock()
	if ok {
		return lessons, nil
	}

	ch := l.group.DoChan("lessons:"+class.Key, func() (any, error) {
		raw, err := os.ReadFile(filepath.Join(l.dir, lessonsDir, class.File))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, class.File, err)
		}
		lessons, err := decodeLessons(raw, class.ListKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, class.File, err)
		}

		l.mu.Lock()
		l.lessons[class.Key] = lessons
		l.mu.Unlock()
		slog.Debug("Loaded lessons", "class", class.Key, "count", len(lessons))
		return lessons, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]map[string]any), nil
	}
}

func (l *Library) loadHymns(ctx context.Context, book catalog.Source) ([]domain.Hymn, error) {
	l.mu.RLock()
	hymns, ok := l.hymns[book.Key]
	l.mu.RUnlock()
	if ok {
		return hymns, nil
	}

	ch := l.group.DoChan("hymns:"+book.Key, func() (any, error) {
		raw, err := os.ReadFile(filepath.Join(l.dir, hymnbooksDir, book.File))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, book.File, err)
		}
		hymns, err := decodeHymns(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, book.File, err)
		}

		l.mu.Lock()
		l.hymns[book.Key] = hymns
		l.mu.Unlock()
		slog.Debug("Loaded hymnbook", "book", book.Key, "count", len(hymns))
		return hymns, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Hymn), nil
	}
}

// decodeLessons accepts either a bare array or an object holding the
// array under listKey.
func decodeLessons(raw []byte, listKey string) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped map[string][]map[string]any
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		lessons, ok := wrapped[listKey]
		if !ok {
			return nil, fmt.Errorf("missing %q list", listKey)
		}
		return lessons, nil
	}

	var lessons []map[string]any
	if err := json.Unmarshal(trimmed, &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

type hymnRecord struct {
	Number json.RawMessage   `json:"number"`
	Title  string            `json:"title"`
	Verses [][]string        `json:"verses"`
	Chorus []string          `json:"chorus"`
	Parts  []json.RawMessage `json:"parts"`
}

type hymnPartRecord struct {
	Part   json.RawMessage `json:"part"`
	Verses [][]string      `json:"verses"`
}

func decodeHymns(raw []byte) ([]domain.Hymn, error) {
	var records []hymnRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}

	hymns := make([]domain.Hymn, 0, len(records))
	for _, r := range records {
		h := domain.Hymn{
			Number: scalarString(r.Number),
			Title:  r.Title,
			Verses: r.Verses,
			Chorus: r.Chorus,
		}
		for _, p := range r.Parts {
			var part hymnPartRecord
			if err := json.Unmarshal(p, &part); err != nil {
				return nil, fmt.Errorf("hymn %s part: %w", h.Number, err)
			}
			h.Parts = append(h.Parts, domain.HymnPart{Part: scalarString(part.Part), Verses: part.Verses})
		}
		hymns = append(hymns, h)
	}
	return hymns, nil
}

// scalarString renders a JSON number or string as plain text.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return strings.TrimSpace(string(raw))
}

func lessonTitle(fields map[string]any) string {
	for _, key := range []string{"title", "lessonTitle"} {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}
	return "N/A"
}
