package activitymap_test

import (
	"context"
	"testing"
	"time"

	authclient "github.com/aquapool/go-authclient"
	"github.com/aquapool/go-authclient/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	event := authclient.ActivityEvent{
		EventType:  authclient.ActivityEventLoginSuccess,
		Subject:    "marie",
		FromStatus: authclient.StatusAnonymous,
		ToStatus:   authclient.StatusAuthenticated,
		Metadata:   map[string]any{"source": "web"},
		OccurredAt: occurred,
	}

	normalized := activitymap.Normalize(event)

	assert.Equal(t, "marie", normalized.ActorID)
	assert.Equal(t, "auth.login.success", normalized.Verb)
	assert.Equal(t, "session", normalized.ObjectType)
	assert.Equal(t, "marie", normalized.ObjectID)
	assert.Equal(t, "auth", normalized.Channel)
	assert.Equal(t, occurred, normalized.OccurredAt)

	assert.Equal(t, "web", normalized.Metadata["source"])
	assert.Equal(t, "anonymous", normalized.Metadata[activitymap.MetadataKeyFromStatus])
	assert.Equal(t, "authenticated", normalized.Metadata[activitymap.MetadataKeyToStatus])
}

func TestNormalize_Defaults(t *testing.T) {
	normalized := activitymap.Normalize(authclient.ActivityEvent{
		EventType: authclient.ActivityEventLogout,
	})

	assert.Equal(t, "anonymous", normalized.ActorID)
	assert.Empty(t, normalized.ObjectID)
	assert.False(t, normalized.OccurredAt.IsZero())
}

func TestNormalize_Options(t *testing.T) {
	event := authclient.ActivityEvent{
		EventType: authclient.ActivityEventSessionExpired,
		Subject:   "marie",
	}

	normalized := activitymap.Normalize(event,
		activitymap.WithDefaultChannel("telemetry"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithActorFallback("system"),
		activitymap.WithObjectIDResolver(func(e authclient.ActivityEvent) string {
			return "acct-" + e.Subject
		}),
	)

	assert.Equal(t, "telemetry", normalized.Channel)
	assert.Equal(t, "account", normalized.ObjectType)
	assert.Equal(t, "acct-marie", normalized.ObjectID)
}

func TestNormalize_MetadataIsCopied(t *testing.T) {
	metadata := map[string]any{"k": "v"}
	event := authclient.ActivityEvent{
		EventType: authclient.ActivityEventLogout,
		Metadata:  metadata,
	}

	normalized := activitymap.Normalize(event)
	normalized.Metadata["k"] = "mutated"

	assert.Equal(t, "v", metadata["k"])
}

func TestSink(t *testing.T) {
	var records []activitymap.Normalized
	sink := activitymap.Sink(func(n activitymap.Normalized) {
		records = append(records, n)
	}, activitymap.WithDefaultChannel("audit"))

	err := sink.Record(context.Background(), authclient.ActivityEvent{
		EventType: authclient.ActivityEventLoginSuccess,
		Subject:   "marie",
	})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "audit", records[0].Channel)
	assert.Equal(t, "marie", records[0].ActorID)
}
