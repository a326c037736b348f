// Package progression holds the pure progression rules: levels, streaks,
// coin values, calendar days and the achievement catalog.
package progression

// Level is one tier of the revenue ladder.
type Level struct {
	Number    int     `json:"level"`
	Name      string  `json:"name"`
	Emoji     string  `json:"emoji"`
	Threshold float64 `json:"threshold"`
}

// MaxLevel is the highest reachable level number.
const MaxLevel = 9

var levels = []Level{
	{Number: 1, Name: "Goomba Squasher", Emoji: "🍄", Threshold: 0},
	{Number: 2, Name: "Coin Collector", Emoji: "🪙", Threshold: 100},
	{Number: 3, Name: "Fire Flower Master", Emoji: "🔥", Threshold: 1000},
	{Number: 4, Name: "Star Power", Emoji: "⭐", Threshold: 5000},
	{Number: 5, Name: "Wing Cap Flyer", Emoji: "🦅", Threshold: 10000},
	{Number: 6, Name: "Super Star", Emoji: "🌟", Threshold: 25000},
	{Number: 7, Name: "King Koopa Defeater", Emoji: "👑", Threshold: 50000},
	{Number: 8, Name: "Castle Master", Emoji: "🏰", Threshold: 75000},
	{Number: 9, Name: "World Champion", Emoji: "🌎", Threshold: 100000},
}

// Levels returns a copy of the level table in ascending order.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// LevelByNumber returns the level with the given number, clamped to [1, MaxLevel].
func LevelByNumber(n int) Level {
	if n < 1 {
		n = 1
	}
	if n > MaxLevel {
		n = MaxLevel
	}
	return levels[n-1]
}

// LevelFromEarnings returns the highest level whose threshold is at most
// earnings. Negative earnings count as zero.
func LevelFromEarnings(earnings float64) Level {
	if earnings < 0 {
		earnings = 0
	}
	for i := len(levels) - 1; i >= 0; i-- {
		if earnings >= levels[i].Threshold {
			return levels[i]
		}
	}
	return levels[0]
}

// NextLevel describes the distance from the current level to the next one.
type NextLevel struct {
	Current    Level   `json:"current"`
	Next       *Level  `json:"next,omitempty"`
	Remaining  float64 `json:"remaining"`
	Progress   float64 `json:"progress"`
	IsMaxLevel bool    `json:"is_max_level"`
}

// NextLevelInfo reports the next level, the amount still needed and the
// percentage of the current step already covered, clamped to [0, 100].
func NextLevelInfo(earnings float64) NextLevel {
	if earnings < 0 {
		earnings = 0
	}
	current := LevelFromEarnings(earnings)
	if current.Number == MaxLevel {
		return NextLevel{Current: current, Progress: 100, IsMaxLevel: true}
	}

	next := levels[current.Number]
	span := next.Threshold - current.Threshold
	progress := (earnings - current.Threshold) / span * 100

	return NextLevel{
		Current:   current,
		Next:      &next,
		Remaining: next.Threshold - earnings,
		Progress:  clamp(progress, 0, 100),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
