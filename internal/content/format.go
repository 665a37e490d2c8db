package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/sundaybot/internal/domain"
)

var bibleBooks = []string{
	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy", "Joshua", "Judges", "Ruth",
	"1 Samuel", "2 Samuel", "1 Kings", "2 Kings", "1 Chronicles", "2 Chronicles", "Ezra",
	"Nehemiah", "Esther", "Job", "Psalm", "Proverbs", "Ecclesiastes", "Song of Solomon",
	"Isaiah", "Jeremiah", "Lamentations", "Ezekiel", "Daniel", "Hosea", "Joel", "Amos",
	"Obadiah", "Jonah", "Micah", "Nahum", "Habakkuk", "Zephaniah", "Haggai", "Zechariah",
	"Malachi", "Matthew", "Mark", "Luke", "John", "Acts", "Romans", "1 Corinthians",
	"2 Corinthians", "Galatians", "Ephesians", "Philippians", "Colossians", "1 Thessalonians",
	"2 Thessalonians", "1 Timothy", "2 Timothy", "Titus", "Philemon", "Hebrews", "James",
	"1 Peter", "2 Peter", "1 John", "2 John", "3 John", "Jude", "Revelation",
}

var verseLink = func() *regexp.Regexp {
	names := make([]string, len(bibleBooks))
	for i, b := range bibleBooks {
		names[i] = strings.ReplaceAll(regexp.QuoteMeta(b), " ", `\s`)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\s+(\d+:\d+(?:-\d+)?)\b`)
}()

// Linkify wraps verse references in a tappable "bible <ref>" shortcut.
func Linkify(text string) string {
	if text == "" {
		return text
	}
	return verseLink.ReplaceAllString(text, "`bible $0`")
}

// FormatPassage renders a looked-up passage.
func FormatPassage(p *domain.Passage) string {
	parts := make([]string, 0, len(p.Verses))
	for _, v := range p.Verses {
		parts = append(parts, fmt.Sprintf("[%d] %s", v.Number, strings.TrimSpace(v.Text)))
	}
	return fmt.Sprintf("📖 *%s*\n\n%s", p.Reference, strings.Join(parts, " "))
}

// FormatHymn renders a hymn with its chorus after every verse.
func FormatHymn(h *domain.Hymn) string {
	title := h.Title
	if title == "" {
		title = "No Title"
	}
	number := h.Number
	if number == "" {
		number = "#"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎶 *Hymn #%s: %s*\n\n", number, title)

	chorus := ""
	if len(h.Chorus) > 0 {
		chorus = "*Chorus:*\n" + strings.Join(h.Chorus, "\n") + "\n\n"
	}
	if len(h.Verses) > 0 {
		for i, lines := range h.Verses {
			fmt.Fprintf(&b, "*%d.*\n%s\n\n", i+1, strings.Join(lines, "\n"))
			b.WriteString(chorus)
		}
	} else {
		b.WriteString(chorus)
	}

	for _, part := range h.Parts {
		if part.Part != "" {
			fmt.Fprintf(&b, "*Part %s*\n", part.Part)
		} else {
			b.WriteString("*Part*\n")
		}
		for i, lines := range part.Verses {
			fmt.Fprintf(&b, "*%d.*\n%s\n\n", i+1, strings.Join(lines, "\n"))
		}
	}
	return strings.TrimSpace(b.String())
}

// FormatLesson renders a lesson in its class's layout.
func FormatLesson(l *domain.Lesson) string {
	if l == nil || l.Fields == nil {
		return "Lesson details could not be found."
	}
	switch l.Class {
	case "search":
		return formatSearchLesson(l.Fields)
	case "primary_pals":
		return formatPrimaryPalsLesson(l.Fields)
	}
	return formatBasicLesson(l.Fields)
}

func formatBasicLesson(f map[string]any) string {
	title := str(f, "title", "No Title")
	memory := Linkify(str(f, "memory_verse", "N/A"))

	var lines []string
	for _, t := range strs(f["text"]) {
		lines = append(lines, Linkify(t))
	}
	return fmt.Sprintf("📖 *%s*\n\n📌 *Memory Verse:*\n_%s_\n\n📝 *Lesson Text:*\n%s",
		title, memory, strings.Join(lines, "\n"))
}

func formatSearchLesson(f map[string]any) string {
	parts := []string{fmt.Sprintf("📖 *%s*", str(f, "lessonTitle", "No Title"))}

	var refs []string
	for _, r := range maps(f["bibleReference"]) {
		refs = append(refs, fmt.Sprintf("%s %s:%s", str(r, "book", ""), str(r, "chapter", ""), str(r, "verses", "")))
	}
	if len(refs) > 0 {
		parts = append(parts, "✝️ *Bible Reference:* "+Linkify(strings.Join(refs, ", ")))
	}
	if s := str(f, "supplementalScripture", ""); s != "" {
		parts = append(parts, "*Supplemental Scripture:* "+Linkify(s))
	}
	if s := str(f, "keyVerse", ""); s != "" {
		parts = append(parts, fmt.Sprintf("📌 *Key Verse:*\n_%s_", Linkify(s)))
	}
	if s := str(f, "resourceMaterial", ""); s != "" {
		parts = append(parts, "📚 *Resource Material:*\n"+Linkify(s))
	}

	parts = append(parts, "---")
	for _, sec := range maps(f["lessonSections"]) {
		body := Linkify(str(sec, "sectionContent", ""))
		switch str(sec, "sectionType", "") {
		case "text":
			parts = append(parts, fmt.Sprintf("📝 *%s*\n%s", str(sec, "sectionTitle", ""), body))
		case "question":
			parts = append(parts, fmt.Sprintf("❓ *Question %s:*\n%s", str(sec, "questionNumber", ""), body))
		}
	}
	return strings.Join(parts, "\n\n")
}

func formatPrimaryPalsLesson(f map[string]any) string {
	parts := []string{fmt.Sprintf("🎨 *%s*", str(f, "title", "No Title"))}

	guide, _ := f["parent_guide"].(map[string]any)
	if memory := Linkify(str(sub(guide, "memory_verse"), "text", "")); memory != "" {
		parts = append(parts, fmt.Sprintf("📌 *Memory Verse:*\n_%s_", memory))
	}
	parts = append(parts, "---")

	if story := strs(f["story"]); len(story) > 0 {
		for i := range story {
			story[i] = Linkify(story[i])
		}
		parts = append(parts, "📖 *Story*\n"+strings.Join(story, "\n\n"))
	}

	if acts := maps(f["activities"]); len(acts) > 0 {
		lines := []string{"🧩 *Activities*"}
		for _, a := range acts {
			instr := str(a, "instructions", "")
			if list := strs(a["instructions"]); len(list) > 0 {
				instr = strings.Join(list, "\n")
			}
			lines = append(lines, fmt.Sprintf("*%s: %s*\n%s", str(a, "type", ""), str(a, "title", ""), Linkify(instr)))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	if len(guide) > 0 {
		lines := []string{"👨‍👩‍👧 *Parent's Guide*"}
		if corner := Linkify(str(sub(guide, "parents_corner"), "text", "")); corner != "" {
			lines = append(lines, "*Parent's Corner:*\n"+corner)
		}
		if devotions := maps(sub(guide, "family_devotions")["verses"]); len(devotions) > 0 {
			dl := []string{"*Family Devotions:*"}
			for _, d := range devotions {
				dl = append(dl, fmt.Sprintf("  - *%s:* %s", str(d, "day", ""), Linkify(str(d, "reference", ""))))
			}
			lines = append(lines, strings.Join(dl, "\n"))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// str reads a scalar field as text, falling back to def when absent.
func str(m map[string]any, key, def string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func sub(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func strs(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func maps(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
