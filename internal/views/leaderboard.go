package views

import (
	"math"
	"sort"

	"homehelper/internal/models"
)

// SpendInsights ranks the viewer on a spend leaderboard. The viewer is
// appended when the board does not list them; ties keep board order.
func SpendInsights(board []models.LeaderboardEntry, viewer models.LeaderboardEntry, size int) models.SpendInsights {
	if size <= 0 {
		size = models.LeaderboardSize
	}

	entries := make([]models.LeaderboardEntry, 0, len(board)+1)
	present := false
	for _, e := range board {
		e.TotalSpend = nonNegative(e.TotalSpend)
		if e.UserID == viewer.UserID {
			present = true
			viewer.TotalSpend = e.TotalSpend
			if viewer.Name == "" {
				viewer.Name = e.Name
			}
		}
		entries = append(entries, e)
	}
	viewer.TotalSpend = nonNegative(viewer.TotalSpend)
	if !present {
		if viewer.Name == "" {
			viewer.Name = "You"
		}
		entries = append(entries, viewer)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalSpend > entries[j].TotalSpend
	})

	rank := 0
	for i, e := range entries {
		if e.UserID == viewer.UserID {
			rank = i + 1
			break
		}
	}

	total := len(entries)
	insights := models.SpendInsights{
		LifetimeSpend: viewer.TotalSpend,
		Rank:          rank,
		TotalUsers:    total,
	}
	if total > 0 && rank > 0 {
		insights.Percentile = int(math.Max(1, math.Round(float64(rank)/float64(total)*100)))
	}
	if rank > 1 {
		ahead := entries[rank-2]
		insights.NextTarget = math.Max(ahead.TotalSpend-viewer.TotalSpend, 0)
	}
	if len(entries) > size {
		entries = entries[:size]
	}
	insights.Board = entries
	return insights
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
