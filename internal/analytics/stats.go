package analytics

import (
	"sort"

	"github.com/gramwatch/gramwatch/internal/models"
)

// EngagementRate computes (totalEngagement / contentCount) / followers * 100.
// Either denominator being zero yields 0.
func EngagementRate(totalEngagement int64, contentCount int, followers int64) float64 {
	if contentCount == 0 || followers == 0 {
		return 0
	}
	perPost := float64(totalEngagement) / float64(contentCount)
	return perPost / float64(followers) * 100
}

// TotalEngagement sums likes and comments over a content set
func TotalEngagement(items []*models.MediaItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Engagement()
	}
	return total
}

// ComputeHashtagStats recomputes the full per-tag rollup from a content
// set: usage count, summed engagement, average engagement, and the
// min/max timestamps of content bearing the tag. Output is ordered by
// usage then engagement so recomputation is deterministic.
func ComputeHashtagStats(accountID int64, items []*models.MediaItem) []*models.HashtagStat {
	byTag := make(map[string]*models.HashtagStat)

	for _, item := range items {
		engagement := item.Engagement()
		for _, tag := range item.Hashtags {
			stat, ok := byTag[tag]
			if !ok {
				stat = &models.HashtagStat{
					TargetAccountID: accountID,
					Tag:             tag,
					FirstUsed:       item.PublishedAt,
					LastUsed:        item.PublishedAt,
				}
				byTag[tag] = stat
			}
			stat.UsageCount++
			stat.TotalEngagement += engagement
			if item.PublishedAt.Before(stat.FirstUsed) {
				stat.FirstUsed = item.PublishedAt
			}
			if item.PublishedAt.After(stat.LastUsed) {
				stat.LastUsed = item.PublishedAt
			}
		}
	}

	stats := make([]*models.HashtagStat, 0, len(byTag))
	for _, stat := range byTag {
		stat.AvgEngagement = float64(stat.TotalEngagement) / float64(stat.UsageCount)
		stats = append(stats, stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].UsageCount != stats[j].UsageCount {
			return stats[i].UsageCount > stats[j].UsageCount
		}
		if stats[i].TotalEngagement != stats[j].TotalEngagement {
			return stats[i].TotalEngagement > stats[j].TotalEngagement
		}
		return stats[i].Tag < stats[j].Tag
	})
	return stats
}
