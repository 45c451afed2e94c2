package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-glow/deepsearch/internal/storage/sqlite"
)

func newTestWriter(t *testing.T) (*Writer, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	return NewWriter(db), db
}

func TestRecordDeepSearchBroadcastsToSubscribers(t *testing.T) {
	writer, _ := newTestWriter(t)

	events, cancel := writer.Subscribe()
	defer cancel()

	writer.RecordDeepSearch("org-1", SearchRecord{
		AgentID:     "agent-1",
		Query:       "lease classification",
		ResultCount: 2,
		Sources: []RecordedSource{
			{SourceID: "src-ifrs", SourceName: "IFRS Foundation", VerificationLevel: "primary"},
		},
		TriggeredBy: "guardrail",
	})

	select {
	case event := <-events:
		assert.Equal(t, "org-1", event.OrgID)
		assert.Equal(t, EventTypeDeepSearch, event.Type)
		assert.Contains(t, event.Payload, `"agentId":"agent-1"`)
		assert.Contains(t, event.Payload, `"resultCount":2`)
		assert.Contains(t, event.Payload, `"triggeredBy":"guardrail"`)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast event")
	}
}

func TestRecordDeepSearchSwallowsStoreErrors(t *testing.T) {
	writer, db := newTestWriter(t)
	require.NoError(t, db.Close())

	events, cancel := writer.Subscribe()
	defer cancel()

	// Must not panic or error; failed writes are not broadcast either.
	writer.RecordDeepSearch("org-1", SearchRecord{AgentID: "a", Query: "q"})

	select {
	case <-events:
		t.Fatal("failed writes must not be broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	writer, _ := newTestWriter(t)

	_, cancel := writer.Subscribe()
	cancel()
	cancel()
}
