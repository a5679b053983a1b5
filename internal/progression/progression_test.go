package progression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalBPForLevelKnownValues(t *testing.T) {
	cases := map[int]int{
		-3: 0,
		0:  0,
		1:  0,
		2:  50,
		3:  120,
		4:  210,
		16: 2850,
	}
	for level, want := range cases {
		assert.Equal(t, want, TotalBPForLevel(level), "TotalBPForLevel(%d)", level)
	}
}

func TestLevelFromTotalBPKnownValues(t *testing.T) {
	cases := []struct {
		bp   int
		want int
	}{
		{-10, 1},
		{0, 1},
		{49, 1},
		{50, 2},
		{119, 2},
		{120, 3},
		{209, 3},
		{210, 4},
		{2849, 15},
		{2850, 16},
		{1_000_000, MaxLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelFromTotalBP(tc.bp), "LevelFromTotalBP(%d)", tc.bp)
	}
}

func TestLevelFromTotalBPHugeTotals(t *testing.T) {
	for _, bp := range []int{math.MaxInt / 40, math.MaxInt/40 + 1, math.MaxInt - 1600, math.MaxInt} {
		assert.Equal(t, MaxLevel, LevelFromTotalBP(bp), "LevelFromTotalBP(%d)", bp)
	}
}

func TestLevelFromTotalBPIsLeftInverse(t *testing.T) {
	prev := 1
	for bp := 0; bp <= 5000; bp++ {
		level := LevelFromTotalBP(bp)
		require.GreaterOrEqual(t, level, prev, "level must be non-decreasing at bp=%d", bp)
		require.GreaterOrEqual(t, level, 1)
		require.LessOrEqual(t, level, MaxLevel)

		require.LessOrEqual(t, TotalBPForLevel(level), bp, "lower bound at bp=%d", bp)
		if level < MaxLevel {
			require.Less(t, bp, TotalBPForLevel(level+1), "upper bound at bp=%d", bp)
		}
		prev = level
	}
}

func TestLevelFromTotalBPAtEveryThreshold(t *testing.T) {
	for level := 1; level <= MaxLevel; level++ {
		threshold := TotalBPForLevel(level)
		assert.Equal(t, level, LevelFromTotalBP(threshold))
		if level > 1 {
			assert.Equal(t, level-1, LevelFromTotalBP(threshold-1))
		}
	}
}

func TestMaqamForLevel(t *testing.T) {
	cases := map[int]string{
		0:  "Ṣābir",
		1:  "Ṣābir",
		3:  "Ṣābir",
		4:  "Shākir",
		6:  "Shākir",
		7:  "Dhākir",
		9:  "Dhākir",
		10: "Ṣādiq",
		12: "Ṣādiq",
		13: "Muḥsin",
		15: "Muḥsin",
		16: "Muqarrab",
		99: "Muqarrab",
	}
	for level, want := range cases {
		assert.Equal(t, want, MaqamForLevel(level).Name, "level %d", level)
	}
	assert.True(t, MaqamForLevel(16).Terminal())
	assert.False(t, MaqamForLevel(15).Terminal())
}

func TestMaqamPercent(t *testing.T) {
	for _, band := range Maqamat {
		if band.Terminal() {
			assert.Equal(t, 100, band.Percent(0))
			assert.Equal(t, 100, band.Percent(band.StartBP()))
			assert.Equal(t, 100, band.Percent(1_000_000))
			continue
		}
		assert.Equal(t, 0, band.Percent(band.StartBP()), band.Name)
		assert.Equal(t, 100, band.Percent(band.NextStartBP()), band.Name)
		assert.Equal(t, 100, band.Percent(band.NextStartBP()+1), band.Name)
		assert.Equal(t, 0, band.Percent(band.StartBP()-1), band.Name)

		mid := (band.StartBP() + band.NextStartBP()) / 2
		assert.Equal(t, 50, band.Percent(mid), band.Name)
	}
}

func TestBandProgress(t *testing.T) {
	p := BandProgress(0)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, "Ṣābir", p.Maqam)
	assert.Equal(t, "Shākir", p.NextMaqam)
	assert.Equal(t, 0, p.Percent)
	require.NotNil(t, p.BPToNextMaqam)
	assert.Equal(t, 1500, *p.BPToNextMaqam)
	require.NotNil(t, p.BPToNextLevel)
	assert.Equal(t, 50, *p.BPToNextLevel)

	p = BandProgress(120)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, 8, p.Percent)
	assert.Equal(t, 90, *p.BPToNextLevel)

	top := BandProgress(TotalBPForLevel(MaxLevel))
	assert.Equal(t, MaxLevel, top.Level)
	assert.Equal(t, "Muqarrab", top.Maqam)
	assert.Equal(t, 100, top.Percent)
	assert.Nil(t, top.BPToNextMaqam)
	assert.Nil(t, top.BPToNextLevel)
	assert.Empty(t, top.NextMaqam)

	neg := BandProgress(-40)
	assert.Equal(t, 0, neg.TotalBP)
	assert.Equal(t, 1, neg.Level)
}
