package cli

import (
	"barakahAPI/internal/observance"
	"barakahAPI/internal/store"
	"barakahAPI/internal/store/memory"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

// seedDemo fills an empty memory store with a small catalog so the API is usable
// without a database.
func seedDemo(mem *memory.Store, cal observance.Calendar) []store.Item {
	items := []store.Item{
		{Kind: store.KindQuest, Category: store.CategorySpiritual, Title: "Pray all five prayers on time", RewardBP: 20},
		{Kind: store.KindQuest, Category: store.CategorySpiritual, Title: "Read one juz of the Qur'an", RewardBP: 30},
		{Kind: store.KindQuest, Category: store.CategorySpiritual, Title: "Pray Taraweeh", RewardBP: 25},
		{Kind: store.KindQuest, Category: store.CategoryMental, Title: "Learn the meaning of a new dua", RewardBP: 15},
		{Kind: store.KindQuest, Category: store.CategoryMental, Title: "Spend ten minutes in dhikr", RewardBP: 10},
		{Kind: store.KindQuest, Category: store.CategoryPhysical, Title: "Break the fast with dates and water", RewardBP: 10},
		{Kind: store.KindQuest, Category: store.CategoryPhysical, Title: "Walk after iftar", RewardBP: 10},
		{
			Kind:        store.KindQuest,
			Category:    store.CategorySpiritual,
			Title:       "Seek Laylat al-Qadr",
			Description: strPtr("Spend part of the night in prayer and supplication."),
			RewardBP:    50,
		},
		{Kind: store.KindVideo, Title: "Why we fast", RewardBP: 15, YoutubeID: strPtr("dQw4w9WgXcQ"), Duration: strPtr("8:12")},
		{Kind: store.KindVideo, Title: "The night journey", RewardBP: 15, YoutubeID: strPtr("9bZkp7q19f0"), Duration: strPtr("11:40")},
	}
	if cal.Configured() {
		// the night prayer quest only shows on the 27th night
		items[7].ScheduledDay = intPtr(27)
	}

	out := make([]store.Item, 0, len(items))
	for _, item := range items {
		item.IsActive = true
		out = append(out, mem.PutItem(item))
	}
	return out
}
