package progression

import "math"

// Maqam is a named tier spanning a band of consecutive levels.
type Maqam struct {
	Name           string `json:"name"`
	StartLevel     int    `json:"start_level"`
	NextStartLevel int    `json:"next_start_level,omitempty"` // 0 on the terminal band
}

func (m Maqam) Terminal() bool {
	return m.NextStartLevel == 0
}

// StartBP is the gauge's BP at the start of the band.
func (m Maqam) StartBP() int {
	return (m.StartLevel - 1) * BPPerLevel
}

// NextStartBP is the gauge's BP at the start of the next band, 0 on the terminal band.
func (m Maqam) NextStartBP() int {
	if m.Terminal() {
		return 0
	}
	return (m.NextStartLevel - 1) * BPPerLevel
}

// Percent reports how far totalBP is through the band, 0..100. The terminal band is always 100.
func (m Maqam) Percent(totalBP int) int {
	if m.Terminal() {
		return 100
	}
	start, end := m.StartBP(), m.NextStartBP()
	if end <= start {
		return 100
	}
	ratio := float64(totalBP-start) / float64(end-start)
	ratio = math.Max(0, math.Min(1, ratio))
	return int(math.Round(ratio * 100))
}

// Maqamat lists the bands in ascending order. Names match maqam_for_level() in the migrations.
var Maqamat = []Maqam{
	{Name: "Ṣābir", StartLevel: 1, NextStartLevel: 4},
	{Name: "Shākir", StartLevel: 4, NextStartLevel: 7},
	{Name: "Dhākir", StartLevel: 7, NextStartLevel: 10},
	{Name: "Ṣādiq", StartLevel: 10, NextStartLevel: 13},
	{Name: "Muḥsin", StartLevel: 13, NextStartLevel: 16},
	{Name: "Muqarrab", StartLevel: 16},
}

// MaqamForLevel returns the band containing level. Out-of-range levels clamp to the first or last band.
func MaqamForLevel(level int) Maqam {
	for i := len(Maqamat) - 1; i >= 0; i-- {
		if level >= Maqamat[i].StartLevel {
			return Maqamat[i]
		}
	}
	return Maqamat[0]
}

// Progress is the UI-facing gauge for the current maqam.
type Progress struct {
	TotalBP       int    `json:"total_bp"`
	Level         int    `json:"level"`
	Maqam         string `json:"maqam"`
	NextMaqam     string `json:"next_maqam,omitempty"`
	Percent       int    `json:"percent"`
	BPToNextMaqam *int   `json:"bp_to_next_maqam"`
	BPToNextLevel *int   `json:"bp_to_next_level"`
}

// BandProgress computes the maqam gauge for a total.
//
// The gauge uses the flat BPPerLevel step, not the quadratic level curve: it is a UX
// approximation and can read 100% well before the next maqam is actually reached.
func BandProgress(totalBP int) Progress {
	if totalBP < 0 {
		totalBP = 0
	}
	level := LevelFromTotalBP(totalBP)
	band := MaqamForLevel(level)

	p := Progress{
		TotalBP: totalBP,
		Level:   level,
		Maqam:   band.Name,
		Percent: 100,
	}

	if level < MaxLevel {
		toLevel := TotalBPForLevel(level+1) - totalBP
		p.BPToNextLevel = &toLevel
	}

	if band.Terminal() {
		return p
	}

	p.NextMaqam = MaqamForLevel(band.NextStartLevel).Name
	p.Percent = band.Percent(totalBP)

	toNext := band.NextStartBP() - totalBP
	if toNext < 0 {
		toNext = 0
	}
	p.BPToNextMaqam = &toNext

	return p
}
