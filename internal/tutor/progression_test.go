package tutor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertProgression_ClampsAndDerivesRevision(t *testing.T) {
	repo := newFakeProgressionRepo()
	svc := NewProgressionService(repo, testLogger())
	user := newTestUser("en")

	require.NoError(t, svc.UpsertProgression(context.Background(), user.ID, "algebra", 150, ""))
	record := repo.records[progressionKey{user.ID, "algebra"}]
	assert.Equal(t, 100, record.Progress)
	assert.True(t, record.Revision)

	require.NoError(t, svc.UpsertProgression(context.Background(), user.ID, "algebra", -10, ""))
	record = repo.records[progressionKey{user.ID, "algebra"}]
	assert.Equal(t, 0, record.Progress)
	assert.False(t, record.Revision)
}

func TestUpsertProgression_KeyedPerTopic(t *testing.T) {
	repo := newFakeProgressionRepo()
	svc := NewProgressionService(repo, testLogger())
	user := newTestUser("en")

	require.NoError(t, svc.UpsertProgression(context.Background(), user.ID, "algebra", 30, "started"))
	require.NoError(t, svc.UpsertProgression(context.Background(), user.ID, "algebra", 60, "halfway"))
	require.NoError(t, svc.UpsertProgression(context.Background(), user.ID, "geometry", 20, ""))

	// Repeated writes replace the record in place rather than appending
	records, err := svc.GetAllProgressions(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 60, records[0].Progress)
	assert.Equal(t, "halfway", records[0].Notes)
}

func TestGetAllProgressions_EmptyNotNil(t *testing.T) {
	svc := NewProgressionService(newFakeProgressionRepo(), testLogger())
	user := newTestUser("en")

	records, err := svc.GetAllProgressions(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGetTopicProgression_AbsentIsNil(t *testing.T) {
	svc := NewProgressionService(newFakeProgressionRepo(), testLogger())
	user := newTestUser("en")

	record, err := svc.GetTopicProgression(context.Background(), user.ID, "calculus")
	require.NoError(t, err)
	assert.Nil(t, record)
}
