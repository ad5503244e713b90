package analytics

import (
	"testing"
	"time"

	"github.com/gramwatch/gramwatch/internal/models"
)

func TestEngagementRate(t *testing.T) {
	tests := []struct {
		name            string
		totalEngagement int64
		contentCount    int
		followers       int64
		expected        float64
	}{
		{
			name:            "typical account",
			totalEngagement: 500,
			contentCount:    5,
			followers:       1000,
			expected:        10.0,
		},
		{name: "no content", totalEngagement: 0, contentCount: 0, followers: 1000, expected: 0},
		{name: "no followers", totalEngagement: 500, contentCount: 5, followers: 0, expected: 0},
		{name: "zero engagement", totalEngagement: 0, contentCount: 3, followers: 100, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EngagementRate(tt.totalEngagement, tt.contentCount, tt.followers)
			if got != tt.expected {
				t.Errorf("EngagementRate(%d, %d, %d) = %v, want %v",
					tt.totalEngagement, tt.contentCount, tt.followers, got, tt.expected)
			}
		})
	}
}

func TestComputeHashtagStats(t *testing.T) {
	day1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	items := []*models.MediaItem{
		{
			Caption:     "Great day #sun #fun",
			Hashtags:    []string{"sun", "fun"},
			LikesCount:  10,
			CommentsCount: 2,
			PublishedAt: day1,
		},
		{
			Caption:     "#sun again",
			Hashtags:    []string{"sun"},
			LikesCount:  5,
			CommentsCount: 1,
			PublishedAt: day2,
		},
	}

	stats := ComputeHashtagStats(7, items)
	if len(stats) != 2 {
		t.Fatalf("Expected 2 tags, got %d", len(stats))
	}

	byTag := map[string]*models.HashtagStat{}
	for _, stat := range stats {
		byTag[stat.Tag] = stat
		if stat.TargetAccountID != 7 {
			t.Errorf("Stat %s has wrong account id %d", stat.Tag, stat.TargetAccountID)
		}
	}

	sun := byTag["sun"]
	if sun == nil {
		t.Fatal("Missing stat for sun")
	}
	if sun.UsageCount != 2 || sun.TotalEngagement != 18 || sun.AvgEngagement != 9 {
		t.Errorf("sun = {usage:%d total:%d avg:%v}, want {2 18 9}",
			sun.UsageCount, sun.TotalEngagement, sun.AvgEngagement)
	}
	if !sun.FirstUsed.Equal(day1) || !sun.LastUsed.Equal(day2) {
		t.Errorf("sun used %v..%v, want %v..%v", sun.FirstUsed, sun.LastUsed, day1, day2)
	}

	fun := byTag["fun"]
	if fun == nil {
		t.Fatal("Missing stat for fun")
	}
	if fun.UsageCount != 1 || fun.TotalEngagement != 12 || fun.AvgEngagement != 12 {
		t.Errorf("fun = {usage:%d total:%d avg:%v}, want {1 12 12}",
			fun.UsageCount, fun.TotalEngagement, fun.AvgEngagement)
	}

	// Most-used tag sorts first
	if stats[0].Tag != "sun" {
		t.Errorf("Expected sun first, got %s", stats[0].Tag)
	}
}

func TestComputeHashtagStatsEmpty(t *testing.T) {
	if stats := ComputeHashtagStats(1, nil); len(stats) != 0 {
		t.Errorf("Expected no stats, got %d", len(stats))
	}

	noTags := []*models.MediaItem{{Caption: "plain", PublishedAt: time.Now()}}
	if stats := ComputeHashtagStats(1, noTags); len(stats) != 0 {
		t.Errorf("Expected no stats for untagged content, got %d", len(stats))
	}
}

func TestTotalEngagement(t *testing.T) {
	items := []*models.MediaItem{
		{LikesCount: 10, CommentsCount: 2},
		{LikesCount: 5, CommentsCount: 1},
	}
	if got := TotalEngagement(items); got != 18 {
		t.Errorf("TotalEngagement = %d, want 18", got)
	}
	if got := TotalEngagement(nil); got != 0 {
		t.Errorf("TotalEngagement(nil) = %d, want 0", got)
	}
}
