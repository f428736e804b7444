package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/content-reminders/internal/domain"
)

const scheduledAtLayout = "Mon, Jan 2, 2006 at 15:04 MST"

// digestListLimit caps how many items a digest lists by name.
const digestListLimit = 20

// FormatScheduledAt renders an instant in the reader's timezone.
func FormatScheduledAt(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "unscheduled"
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(scheduledAtLayout)
}

func platformLabel(platform string) string {
	if p := strings.TrimSpace(platform); p != "" {
		return p
	}
	return "social media"
}

func scheduledAt(item domain.ContentItem, loc *time.Location) string {
	if item.ScheduledAt == nil {
		return FormatScheduledAt(time.Time{}, loc)
	}
	return FormatScheduledAt(*item.ScheduledAt, loc)
}

// ItemViewFor builds the send-time view of an item with already resolved media URLs.
func ItemViewFor(item domain.ContentItem, loc *time.Location, mediaURLs []string) *ItemView {
	return &ItemView{
		ID:          item.ID,
		Title:       item.DisplayTitle(),
		Body:        item.Body,
		Platform:    platformLabel(item.Platform),
		ScheduledAt: scheduledAt(item, loc),
		MediaURLs:   mediaURLs,
	}
}

func ReminderMessage(item domain.ContentItem, loc *time.Location) string {
	return truncate(fmt.Sprintf(
		"Your post %q is scheduled for %s on %s.",
		item.DisplayTitle(), scheduledAt(item, loc), platformLabel(item.Platform),
	))
}

func PublishedMessage(item domain.ContentItem, loc *time.Location) string {
	return truncate(fmt.Sprintf(
		"Your post %q is due to go live on %s now (%s).",
		item.DisplayTitle(), platformLabel(item.Platform), scheduledAt(item, loc),
	))
}

func OverdueMessage(item domain.ContentItem, loc *time.Location) string {
	return truncate(fmt.Sprintf(
		"Your post %q was scheduled for %s on %s and has not been completed.",
		item.DisplayTitle(), scheduledAt(item, loc), platformLabel(item.Platform),
	))
}

// DigestMessage summarises the user's active items, one line per item after the
// headline.
func DigestMessage(scheduled, ideas []domain.ContentItem, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d scheduled %s in the next 24 hours and %d %s waiting.",
		len(scheduled), plural(len(scheduled), "post", "posts"),
		len(ideas), plural(len(ideas), "idea", "ideas"),
	)

	listed := 0
	for _, item := range scheduled {
		if listed == digestListLimit {
			break
		}
		fmt.Fprintf(&b, "\nScheduled: %s (%s, %s)", item.DisplayTitle(), platformLabel(item.Platform), scheduledAt(item, loc))
		listed++
	}
	for _, item := range ideas {
		if listed == digestListLimit {
			break
		}
		fmt.Fprintf(&b, "\nIdea: %s", item.DisplayTitle())
		listed++
	}
	if remaining := len(scheduled) + len(ideas) - listed; remaining > 0 {
		fmt.Fprintf(&b, "\nand %d more", remaining)
	}

	return truncate(b.String())
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func truncate(message string) string {
	runes := []rune(message)
	if len(runes) <= domain.MaxMessageLength {
		return message
	}
	return string(runes[:domain.MaxMessageLength-1]) + "…"
}
