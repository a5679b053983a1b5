package catalog

import (
	"testing"

	"barakahAPI/internal/observance"
	"barakahAPI/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func quest(cat store.Category, day *int, active bool) store.Item {
	return store.Item{ID: uuid.New(), Kind: store.KindQuest, Category: cat, RewardBP: 10, ScheduledDay: day, IsActive: active}
}

func TestAvailable(t *testing.T) {
	day5 := observance.State{Configured: true, Day: 5}
	before := observance.State{Configured: true, DaysUntil: 2}
	after := observance.State{Configured: true, Over: true}

	cases := []struct {
		name string
		item store.Item
		day  observance.State
		want bool
	}{
		{"unscheduled active", quest(store.CategoryMental, nil, true), day5, true},
		{"inactive", quest(store.CategoryMental, nil, false), day5, false},
		{"scheduled today", quest(store.CategoryMental, intPtr(5), true), day5, true},
		{"scheduled other day", quest(store.CategoryMental, intPtr(6), true), day5, false},
		{"scheduled before window", quest(store.CategoryMental, intPtr(1), true), before, false},
		{"unscheduled before window", quest(store.CategoryMental, nil, true), before, true},
		{"scheduled after window", quest(store.CategoryMental, intPtr(30), true), after, false},
		{"scheduled unconfigured", quest(store.CategoryMental, intPtr(1), true), observance.State{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Available(tc.item, tc.day))
		})
	}
}

func TestGroupByCategoryOrder(t *testing.T) {
	items := []store.Item{
		quest(store.CategoryPhysical, nil, true),
		quest(store.CategorySpiritual, nil, true),
		quest(store.CategoryPhysical, nil, true),
		quest("unknown", nil, true),
	}
	groups := GroupByCategory(items)

	require.Len(t, groups, 3)
	assert.Equal(t, store.CategorySpiritual, groups[0].Category)
	assert.Len(t, groups[0].Items, 1)
	assert.Equal(t, store.CategoryMental, groups[1].Category)
	assert.Empty(t, groups[1].Items)
	assert.Equal(t, store.CategoryPhysical, groups[2].Category)
	assert.Equal(t, []store.Item{items[0], items[2]}, groups[2].Items)
}

func TestBuildMovesCompletedToDone(t *testing.T) {
	day := observance.State{Configured: true, Day: 3}
	a := quest(store.CategorySpiritual, nil, true)
	b := quest(store.CategoryMental, nil, true)
	hidden := quest(store.CategoryMental, intPtr(4), true)

	v := Build(store.KindQuest, "2026-02-20", day, []store.Item{a, b, hidden}, map[uuid.UUID]bool{a.ID: true})

	assert.Equal(t, []store.Item{a}, v.Done)
	assert.Empty(t, v.Pending[0].Items)
	assert.Equal(t, []store.Item{b}, v.Pending[1].Items)
	assert.Nil(t, v.PendingFlat)
}

func TestBuildVideosAreFlat(t *testing.T) {
	video := store.Item{ID: uuid.New(), Kind: store.KindVideo, RewardBP: 5, IsActive: true}
	v := Build(store.KindVideo, "2026-02-20", observance.State{}, []store.Item{video}, nil)

	assert.Equal(t, []store.Item{video}, v.PendingFlat)
	assert.Empty(t, v.Pending)
	assert.Empty(t, v.Done)
}
