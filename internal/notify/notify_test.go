package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facefind/internal/config"
	"github.com/saturnino-fabrica-de-software/facefind/internal/domain"
)

func TestEventMessage(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		contains []string
		excludes []string
	}{
		{
			name: "zip upload",
			event: Event{
				Method:             domain.MethodZip,
				SourceName:         "wedding.zip",
				Matches:            3,
				RecognitionSeconds: 1.2345,
				TotalSeconds:       2.5,
				CleanedUp:          true,
			},
			contains: []string{
				"📤 **New Session**",
				"🛠️ Method: ZIP Upload",
				"🖼️ Uploaded ZIP: `wedding.zip`",
				"🧠 Face Recognition Time: 1.23 sec",
				"📦 Total Matching Photos: 3",
				"🧹 Deleted uploaded/extracted photo folder.",
				"🧹 Deleted temporary face image.",
				"🕒 Total Time: 2.5 sec",
			},
		},
		{
			name: "drive omits archive line",
			event: Event{
				Method:        domain.MethodDrive,
				SourceName:    "1AbCdEfGhIjK",
				Skipped:       2,
				FailedFetches: 1,
				Reason:        "No matching photos found.",
				CleanedUp:     true,
			},
			contains: []string{
				"🛠️ Method: Google Drive",
				"📦 Total Matching Photos: 0",
				"ℹ️ No matching photos found.",
				"⚠️ Skipped 2 unreadable photos",
				"⚠️ Failed 1 download",
			},
			excludes: []string{"Uploaded ZIP"},
		},
		{
			name:     "cleanup failure",
			event:    Event{Method: domain.MethodS3},
			contains: []string{"⚠️ Temporary files could not be fully removed."},
			excludes: []string{"🧹"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.event.Message()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, msg, s)
			}
		})
	}
}

func TestEventFromSession(t *testing.T) {
	s := &domain.Session{
		ID:          uuid.New(),
		Method:      domain.MethodZip,
		SourceName:  "photos.zip",
		Matches:     []domain.Match{{Name: "a.jpg"}, {Name: "b.jpg"}},
		Scanned:     10,
		Skipped:     1,
		Recognition: 1500 * time.Millisecond,
		Total:       3 * time.Second,
	}

	e := EventFromSession(s, true)

	assert.Equal(t, EventSessionCompleted, e.Type)
	assert.Equal(t, s.ID.String(), e.SessionID)
	assert.Equal(t, 2, e.Matches)
	assert.Equal(t, 10, e.Scanned)
	assert.InDelta(t, 1.5, e.RecognitionSeconds, 1e-9)
	assert.InDelta(t, 3.0, e.TotalSeconds, 1e-9)
	assert.True(t, e.CleanedUp)
	assert.False(t, e.Timestamp.IsZero())
}

type funcNotifier func(ctx context.Context, e Event) error

func (f funcNotifier) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

func TestMulti(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	var calls int32

	m := Multi{
		funcNotifier(func(context.Context, Event) error { atomic.AddInt32(&calls, 1); return errA }),
		funcNotifier(func(context.Context, Event) error { atomic.AddInt32(&calls, 1); return nil }),
		funcNotifier(func(context.Context, Event) error { atomic.AddInt32(&calls, 1); return errB }),
	}

	err := m.Notify(context.Background(), Event{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, int32(3), calls)

	assert.NoError(t, Multi{Nop{}}.Notify(context.Background(), Event{}))
}

func TestAsync(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("delivers in background", func(t *testing.T) {
		var got atomic.Value
		a := NewAsync(funcNotifier(func(_ context.Context, e Event) error {
			got.Store(e.SessionID)
			return nil
		}), time.Second, logger)

		a.Send(Event{SessionID: "abc"})
		a.Wait()

		assert.Equal(t, "abc", got.Load())
	})

	t.Run("applies timeout", func(t *testing.T) {
		var deadline atomic.Bool
		a := NewAsync(funcNotifier(func(ctx context.Context, _ Event) error {
			_, ok := ctx.Deadline()
			deadline.Store(ok)
			<-ctx.Done()
			return ctx.Err()
		}), 20*time.Millisecond, logger)

		a.Send(Event{})
		a.Wait()

		assert.True(t, deadline.Load())
	})
}

func TestFromConfig(t *testing.T) {
	t.Run("no sinks", func(t *testing.T) {
		n, closeFn, err := FromConfig(&config.Config{})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, Nop{}, n)
	})

	t.Run("http sinks", func(t *testing.T) {
		n, closeFn, err := FromConfig(&config.Config{
			DiscordWebhookURL: "http://discord.invalid/hook",
			WebhookURL:        "http://example.invalid/hook",
		})
		require.NoError(t, err)
		defer closeFn()

		m, ok := n.(Multi)
		require.True(t, ok)
		assert.Len(t, m, 2)
	})
}
