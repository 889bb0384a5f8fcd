package content

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"huddle/api/internal/shortid"
)

const maxChipTitle = 30

var initialPalette = []string{
	"#2563eb", "#7c3aed", "#db2777", "#ea580c",
	"#16a34a", "#0891b2", "#ca8a04", "#4b5563",
}

func renderChip(tok Token, refs lookup) string {
	if tok.Kind.IsTask() {
		rec, ok := refs.task(tok.ID)
		return taskChip(tok, rec, ok)
	}
	rec, ok := refs.user(tok.ID)
	return userChip(tok.ID, rec, ok)
}

func taskChip(tok Token, rec TaskRecord, resolved bool) string {
	id := tok.ID
	title := tok.Title
	if resolved {
		id = rec.ID
		if strings.TrimSpace(rec.Title) != "" {
			title = rec.Title
		}
	}

	label := "#" + displayID(tok.ID)
	if title = strings.TrimSpace(title); title != "" {
		label += ": " + truncate(title, maxChipTitle)
	}
	return fmt.Sprintf(`<span class="%s" %s="%s" contenteditable="false">%s</span>`,
		ClassTaskChip, AttrTaskID, html.EscapeString(id), html.EscapeString(label))
}

func userChip(id string, rec UserRecord, resolved bool) string {
	name := "User"
	avatarURL := ""
	if resolved {
		if n := strings.TrimSpace(rec.Name); n != "" {
			name = n
		}
		avatarURL = strings.TrimSpace(rec.AvatarURL)
		id = rec.ID
	}

	var avatar string
	if avatarURL != "" {
		avatar = fmt.Sprintf(`<img class="user-chip-avatar" src="%s" alt="">`, html.EscapeString(avatarURL))
	} else {
		avatar = fmt.Sprintf(`<span class="user-chip-initial" style="background-color:%s">%s</span>`,
			initialColor(id), html.EscapeString(initial(name)))
	}
	return fmt.Sprintf(`<span class="%s" %s="%s" contenteditable="false">%s%s</span>`,
		ClassUserChip, AttrUserID, html.EscapeString(id), avatar, html.EscapeString(name))
}

// displayID is the short form shown on a task chip. Ids that are not full
// ids are shown as written.
func displayID(id string) string {
	if IsFullID(id) {
		if short := shortid.Encode(id); short != "" {
			return short
		}
	}
	return id
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return "U"
	}
	return string(unicode.ToUpper(r))
}

func initialColor(id string) string {
	sum := 0
	for _, b := range []byte(strings.ToLower(id)) {
		sum += int(b)
	}
	return initialPalette[sum%len(initialPalette)]
}
