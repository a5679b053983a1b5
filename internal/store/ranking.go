package store

import (
	"bytes"
	"sort"
)

// Qualifies reports whether a profile appears on the leaderboard.
func Qualifies(p *Profile) bool {
	return p.TotalBP > 0
}

// RankBefore is the leaderboard order: total_bp DESC, created_at ASC, id ASC.
func RankBefore(a, b *Profile) bool {
	if a.TotalBP != b.TotalBP {
		return a.TotalBP > b.TotalBP
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// Rank filters the qualifying profiles, orders them and assigns 1-based ranks.
func Rank(profiles []*Profile) []LeaderboardEntry {
	qualifying := make([]*Profile, 0, len(profiles))
	for _, p := range profiles {
		if Qualifies(p) {
			qualifying = append(qualifying, p)
		}
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		return RankBefore(qualifying[i], qualifying[j])
	})

	entries := make([]LeaderboardEntry, len(qualifying))
	for i, p := range qualifying {
		entries[i] = EntryFor(p, i+1)
	}
	return entries
}

func EntryFor(p *Profile, rank int) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:          rank,
		UserID:        p.ID,
		DisplayName:   p.DisplayName,
		AvatarURL:     p.AvatarURL,
		TotalBP:       p.TotalBP,
		CurrentLevel:  p.CurrentLevel,
		CurrentMaqam:  p.CurrentMaqam,
		CurrentStreak: p.CurrentStreak,
	}
}
