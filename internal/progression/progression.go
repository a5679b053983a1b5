package progression

import "math"

const (
	// MaxLevel is the highest reachable level. The store trigger clamps to the same value.
	MaxLevel = 16

	// BPPerLevel is the flat step used by the maqam progress gauge only.
	BPPerLevel = 500
)

// TotalBPForLevel returns the minimum total_bp needed to be at the given level.
// Level 1 = 0, level 2 = 50, level 3 = 120, level 4 = 210, ...
func TotalBPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return 10 * (level - 1) * (level + 3)
}

// LevelFromTotalBP inverts TotalBPForLevel by solving the quadratic and clamps to [1, MaxLevel].
// Must stay in sync with level_from_total_bp() in the store migrations.
func LevelFromTotalBP(totalBP int) int {
	bp := totalBP
	if bp < 0 {
		bp = 0
	}
	// also keeps 40*bp below from overflowing
	if bp >= TotalBPForLevel(MaxLevel) {
		return MaxLevel
	}

	level := int(math.Floor((-20 + math.Sqrt(float64(1600+40*bp))) / 20))

	// sqrt of a perfect square can land a hair under the integer on large inputs
	if TotalBPForLevel(level+1) <= bp {
		level++
	} else if level > 1 && TotalBPForLevel(level) > bp {
		level--
	}

	if level < 1 {
		return 1
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
