// Package notify delivers session summaries to external log channels.
// Delivery is best effort: callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"

	"github.com/saturnino-fabrica-de-software/facefind/internal/domain"
)

const EventSessionCompleted = "session.completed"

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Event summarises one finished session. It never carries photos or face data.
type Event struct {
	Type               string        `json:"type"`
	SessionID          string        `json:"session_id"`
	Method             domain.Method `json:"method"`
	SourceName         string        `json:"source_name,omitempty"`
	Matches            int           `json:"matches"`
	Scanned            int           `json:"scanned"`
	Skipped            int           `json:"skipped"`
	FailedFetches      int           `json:"failed_fetches,omitempty"`
	Reason             string        `json:"reason,omitempty"`
	RecognitionSeconds float64       `json:"recognition_seconds"`
	TotalSeconds       float64       `json:"total_seconds"`
	CleanedUp          bool          `json:"cleaned_up"`
	Timestamp          time.Time     `json:"timestamp"`
}

func EventFromSession(s *domain.Session, cleanedUp bool) Event {
	return Event{
		Type:               EventSessionCompleted,
		SessionID:          s.ID.String(),
		Method:             s.Method,
		SourceName:         s.SourceName,
		Matches:            len(s.Matches),
		Scanned:            s.Scanned,
		Skipped:            s.Skipped,
		FailedFetches:      s.FailedFetches,
		Reason:             s.Reason,
		RecognitionSeconds: s.Recognition.Seconds(),
		TotalSeconds:       s.Total.Seconds(),
		CleanedUp:          cleanedUp,
		Timestamp:          time.Now().UTC(),
	}
}

// Message renders the event as the human-readable status line posted to chat
// channels.
func (e Event) Message() string {
	var b strings.Builder
	b.WriteString("📤 **New Session**\n")
	fmt.Fprintf(&b, "🛠️ Method: %s\n", e.Method.Label())
	if e.Method == domain.MethodZip && e.SourceName != "" {
		fmt.Fprintf(&b, "🖼️ Uploaded ZIP: `%s`\n", e.SourceName)
	}
	fmt.Fprintf(&b, "🧠 Face Recognition Time: %s sec\n", seconds(e.RecognitionSeconds))
	fmt.Fprintf(&b, "📦 Total Matching Photos: %d\n", e.Matches)
	if e.Reason != "" {
		fmt.Fprintf(&b, "ℹ️ %s\n", e.Reason)
	}
	if e.Skipped > 0 {
		fmt.Fprintf(&b, "⚠️ Skipped %s\n", english.Plural(e.Skipped, "unreadable photo", ""))
	}
	if e.FailedFetches > 0 {
		fmt.Fprintf(&b, "⚠️ Failed %s\n", english.Plural(e.FailedFetches, "download", ""))
	}
	if e.CleanedUp {
		b.WriteString("🧹 Deleted uploaded/extracted photo folder.\n")
		b.WriteString("🧹 Deleted temporary face image.\n")
	} else {
		b.WriteString("⚠️ Temporary files could not be fully removed.\n")
	}
	fmt.Fprintf(&b, "🕒 Total Time: %s sec", seconds(e.TotalSeconds))
	return b.String()
}

// seconds rounds to two decimals and drops trailing zeros.
func seconds(s float64) string {
	return strconv.FormatFloat(math.Round(s*100)/100, 'f', -1, 64)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
