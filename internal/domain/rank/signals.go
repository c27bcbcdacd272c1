package rank

import "time"

// ActivityWindow is how long it takes for activity to decay to zero.
const ActivityWindow = 72 * time.Hour

// ActivityScore decays linearly from 100 at lastActive to 0 after
// ActivityWindow. A zero lastActive means never active.
func ActivityScore(lastActive, now time.Time) float64 {
	if lastActive.IsZero() {
		return 0
	}
	elapsed := now.Sub(lastActive)
	if elapsed <= 0 {
		return maxScore
	}
	if elapsed >= ActivityWindow {
		return 0
	}
	return clamp(maxScore * (1 - float64(elapsed)/float64(ActivityWindow)))
}

// WorkloadScore maps a count of active tasks to [0,100]. With a team
// average it is the ratio to twice that average; without one every task
// adds 10.
func WorkloadScore(activeTasks int, teamAverage float64) float64 {
	if activeTasks <= 0 {
		return 0
	}
	if teamAverage > 0 {
		return clamp(maxScore * float64(activeTasks) / (2 * teamAverage))
	}
	return clamp(float64(activeTasks) * 10)
}

// TeamAverage returns the mean of the active task counts, or 0 for an
// empty team.
func TeamAverage(activeTasks []int) float64 {
	if len(activeTasks) == 0 {
		return 0
	}
	total := 0
	for _, n := range activeTasks {
		total += n
	}
	return float64(total) / float64(len(activeTasks))
}

func clamp(v float64) float64 {
	return min(max(v, 0), maxScore)
}
