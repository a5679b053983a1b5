package cli

import (
	"bytes"
	"context"
	"testing"

	"barakahAPI/internal/store"
	"barakahAPI/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()

	quest, err := addItem(ctx, mem, &itemOptions{kind: "quests", category: "mental", title: "Memorise a short surah", reward: 15, day: 21})
	require.NoError(t, err)
	assert.Equal(t, store.KindQuest, quest.Kind)
	assert.Equal(t, store.CategoryMental, quest.Category)
	require.NotNil(t, quest.ScheduledDay)
	assert.Equal(t, 21, *quest.ScheduledDay)
	assert.True(t, quest.IsActive)

	video, err := addItem(ctx, mem, &itemOptions{kind: "video", title: "Stories of the prophets", reward: 20, youtubeID: "abc123"})
	require.NoError(t, err)
	assert.Empty(t, video.Category)
	assert.Equal(t, "abc123", *video.YoutubeID)
	assert.Nil(t, video.Duration)

	bad := []*itemOptions{
		{kind: "dua", title: "x", reward: 1},
		{kind: "quest", title: "no category", reward: 1},
		{kind: "quest", category: "spiritual", title: "", reward: 1},
		{kind: "quest", category: "spiritual", title: "free", reward: 0},
		{kind: "quest", category: "spiritual", title: "day 31", reward: 5, day: 31},
		{kind: "video", category: "physical", title: "categorised video", reward: 5},
	}
	for _, opts := range bad {
		_, err := addItem(ctx, mem, opts)
		assert.Error(t, err, opts.title)
	}
}

func TestListItemsAfterDeactivate(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	keep, err := addItem(ctx, mem, &itemOptions{kind: "quest", category: "physical", title: "Stretch before Fajr", reward: 5})
	require.NoError(t, err)
	drop, err := addItem(ctx, mem, &itemOptions{kind: "quest", category: "physical", title: "Retired quest", reward: 5})
	require.NoError(t, err)

	require.NoError(t, mem.SetItemActive(ctx, drop.ID, false))

	buf := &bytes.Buffer{}
	require.NoError(t, listItems(ctx, mem, "quest", "text", buf))
	assert.Contains(t, buf.String(), keep.ID.String())
	assert.NotContains(t, buf.String(), drop.ID.String())
	assert.Contains(t, buf.String(), "physical")
}
