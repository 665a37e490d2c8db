package domain

// Lesson is a week's lesson for one class. Fields holds the record as it
// is stored by the content source and is only interpreted by formatters.
type Lesson struct {
	Class  string         `json:"class"`
	Week   int            `json:"week"`
	Title  string         `json:"title"`
	Fields map[string]any `json:"fields"`
}

// HymnPart is a numbered part of a multi-part hymn.
type HymnPart struct {
	Part   string     `json:"part"`
	Verses [][]string `json:"verses"`
}

// Hymn is one hymnbook entry.
type Hymn struct {
	Number string     `json:"number"`
	Title  string     `json:"title"`
	Verses [][]string `json:"verses"`
	Chorus []string   `json:"chorus"`
	Parts  []HymnPart `json:"parts"`
}

// Verse is a single numbered verse.
type Verse struct {
	Number int
	Text   string
}

// Passage is the result of a scripture lookup.
type Passage struct {
	Reference string
	Verses    []Verse
}
