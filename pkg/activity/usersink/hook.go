// Package usersink records option lifecycle events in a go-users activity
// log.
package usersink

import (
	"context"
	"encoding"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-datastore-options/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook writes each event to Sink as an ActivityRecord.
//
// Configuration often runs as a named service account ("bootstrap") rather
// than a user. When Namespace is set such names are mapped to stable
// name-based UUIDs in that namespace; otherwise they become uuid.Nil.
type Hook struct {
	Sink      usertypes.ActivitySink
	Namespace uuid.UUID
}

// Notify implements activity.ActivityHook. The actor is also recorded as
// the user since configuration events have no other subject.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	actor := h.identify(event.ActorID)
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    actor,
		UserID:     actor,
		TenantID:   h.identify(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       recordData(event.Metadata),
		OccurredAt: occurred,
	})
}

func (h Hook) identify(id string) uuid.UUID {
	id = strings.TrimSpace(id)
	if id == "" {
		return uuid.Nil
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed
	}
	if h.Namespace == uuid.Nil {
		return uuid.Nil
	}
	return uuid.NewSHA1(h.Namespace, []byte(id))
}

// recordData renders option values as JSON friendly scalars. Enum types
// render through String or MarshalText, other values through fmt.
func recordData(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = renderValue(value)
	}
	return dst
}

func renderValue(value any) any {
	switch typed := value.(type) {
	case nil, string, bool, int, int64, float64:
		return value
	case fmt.Stringer:
		return typed.String()
	case encoding.TextMarshaler:
		if text, err := typed.MarshalText(); err == nil {
			return string(text)
		}
	}
	return fmt.Sprintf("%+v", value)
}
