package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetgraph/meetgraph/internal/models"
)

func newTestRelational(t *testing.T) *Relational {
	t.Helper()
	rel, err := OpenRelational(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { rel.Close() })
	return rel
}

func TestSaveEntitiesUpsertsByNormalizedNameAndType(t *testing.T) {
	ctx := context.Background()
	rel := newTestRelational(t)

	first := []models.Entity{{Name: "Project Alpha", Type: models.EntityProject, Attributes: map[string]interface{}{"owner": "Alice"}}}
	require.NoError(t, rel.SaveEntities(ctx, first))
	id := first[0].ID
	require.NotEmpty(t, id)

	second := []models.Entity{{ID: "", Name: "project alpha", Type: models.EntityProject, Attributes: map[string]interface{}{"status": "planned"}}}
	require.NoError(t, rel.SaveEntities(ctx, second))

	assert.Equal(t, id, second[0].ID, "upsert must reuse the existing surrogate id")

	fetched, err := rel.GetEntity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", fetched.Attributes["owner"], "merge must keep the original key")
	assert.Equal(t, "planned", fetched.Attributes["status"], "merge must add the new key")
}

func TestGetEntityByNameExactNormalizedMatch(t *testing.T) {
	ctx := context.Background()
	rel := newTestRelational(t)

	entities := []models.Entity{{Name: "API Migration", Type: models.EntityProject}}
	require.NoError(t, rel.SaveEntities(ctx, entities))

	found, err := rel.GetEntityByName(ctx, "  API Migration  ", nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, entities[0].ID, found.ID)
}

func TestSaveRelationshipsDedupesActiveDuplicates(t *testing.T) {
	ctx := context.Background()
	rel := newTestRelational(t)

	entities := []models.Entity{
		{Name: "Alice", Type: models.EntityPerson},
		{Name: "Project Alpha", Type: models.EntityProject},
	}
	require.NoError(t, rel.SaveEntities(ctx, entities))

	relship := models.EntityRelationship{
		ID: "rel-1", FromEntityID: entities[0].ID, ToEntityID: entities[1].ID,
		Type: models.RelOwns, MeetingID: "m1", Timestamp: time.Now(), Active: true,
	}
	require.NoError(t, rel.SaveRelationships(ctx, []models.EntityRelationship{relship}))

	dup := relship
	dup.ID = "rel-2"
	require.NoError(t, rel.SaveRelationships(ctx, []models.EntityRelationship{dup}))

	got, err := rel.GetEntityRelationships(ctx, entities[0].ID, true)
	require.NoError(t, err)
	assert.Len(t, got, 1, "duplicate (from,to,type,active) must not create a second row")
}

func TestGetEntityCurrentStateReturnsLatestByTimestamp(t *testing.T) {
	ctx := context.Background()
	rel := newTestRelational(t)

	entities := []models.Entity{{Name: "Project Alpha", Type: models.EntityProject}}
	require.NoError(t, rel.SaveEntities(ctx, entities))
	entityID := entities[0].ID

	older := models.EntityState{ID: "s1", EntityID: entityID, State: models.State{"status": "planned"}, MeetingID: "m1", Timestamp: time.Now().Add(-time.Hour), Confidence: 0.9}
	newer := models.EntityState{ID: "s2", EntityID: entityID, State: models.State{"status": "in_progress"}, MeetingID: "m2", Timestamp: time.Now(), Confidence: 0.9}
	require.NoError(t, rel.SaveEntityStates(ctx, []models.EntityState{older, newer}))

	current, err := rel.GetEntityCurrentState(ctx, entityID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "in_progress", current.State["status"])
}

func TestGetEntityTimelineNewestFirst(t *testing.T) {
	ctx := context.Background()
	rel := newTestRelational(t)

	entities := []models.Entity{{Name: "Project Alpha", Type: models.EntityProject}}
	require.NoError(t, rel.SaveEntities(ctx, entities))
	entityID := entities[0].ID

	require.NoError(t, rel.SaveMeeting(ctx, models.Meeting{ID: "m1", Title: "Kickoff", Transcript: "t", Date: time.Now().Add(-2 * time.Hour), CreatedAt: time.Now()}))
	require.NoError(t, rel.SaveMeeting(ctx, models.Meeting{ID: "m2", Title: "Follow-up", Transcript: "t", Date: time.Now().Add(-time.Hour), CreatedAt: time.Now()}))

	t1 := models.StateTransition{ID: "t1", EntityID: entityID, ToState: models.State{"status": "planned"}, ChangedFields: []string{"status"}, MeetingID: "m1", Timestamp: time.Now().Add(-2 * time.Hour)}
	t2 := models.StateTransition{ID: "t2", EntityID: entityID, ToState: models.State{"status": "in_progress"}, ChangedFields: []string{"status"}, MeetingID: "m2", Timestamp: time.Now().Add(-time.Hour)}
	require.NoError(t, rel.SaveTransitions(ctx, []models.StateTransition{t1, t2}))

	timeline, err := rel.GetEntityTimeline(ctx, entityID, 10)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, "t2", timeline[0].Transition.ID, "newest transition must come first")
	assert.Equal(t, "Follow-up", timeline[0].MeetingName)
}
