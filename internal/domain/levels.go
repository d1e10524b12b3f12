package domain

// Level is a rank derived from the points balance.
type Level string

const (
	LevelRookie      Level = "ROOKIE"
	LevelExplorer    Level = "EXPLORER"
	LevelAchiever    Level = "ACHIEVER"
	LevelMaster      Level = "MASTER"
	LevelGrandmaster Level = "GRANDMASTER"
)

var levelFloors = []struct {
	level Level
	min   int
}{
	{LevelGrandmaster, 800},
	{LevelMaster, 500},
	{LevelAchiever, 300},
	{LevelExplorer, 100},
	{LevelRookie, 0},
}

// LevelFor maps a balance to its level.
func LevelFor(points int) Level {
	for _, f := range levelFloors {
		if points >= f.min {
			return f.level
		}
	}
	return LevelRookie
}
