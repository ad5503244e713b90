// Package analytics turns raw collection snapshots into change events
// and rolled-up metrics. The diff functions are pure: identical inputs
// always produce identical outputs.
package analytics

import (
	"time"

	"github.com/gramwatch/gramwatch/internal/collector"
	"github.com/gramwatch/gramwatch/internal/models"
)

// SnapshotCounters summarizes one relation diff
type SnapshotCounters struct {
	TotalFollowers int
	TotalFollowing int
	NewFollowers   int
	LostFollowers  int
	NonFollowers   int
}

// DiffResult is the full output of one relation diff
type DiffResult struct {
	Merged       []*models.Relation
	Events       []*models.RelationEvent
	Counters     SnapshotCounters
	FollowerIDs  []string
	FollowingIDs []string
}

// ComputeRelationDiff merges the current follower and following lists
// into one record per distinct external id and diffs them against the
// previously persisted id sets. Each id gets one event per diff category
// it appears in; an id can produce several events in one run.
func ComputeRelationDiff(
	accountID int64,
	prevFollowerIDs, prevFollowingIDs []string,
	curFollowers, curFollowing []collector.RelationEntry,
	detectedAt time.Time,
) *DiffResult {
	merged := make(map[string]*models.Relation)
	var order []string

	record := func(entry collector.RelationEntry) *models.Relation {
		rel, ok := merged[entry.ExternalID]
		if !ok {
			rel = &models.Relation{
				TargetAccountID: accountID,
				ExternalID:      entry.ExternalID,
				Username:        entry.Username,
				DisplayName:     entry.FullName,
				AvatarURL:       entry.AvatarURL,
				IsVerified:      entry.IsVerified,
				IsPrivate:       entry.IsPrivate,
			}
			merged[entry.ExternalID] = rel
			order = append(order, entry.ExternalID)
		}
		return rel
	}

	curFollowerSet := make(map[string]collector.RelationEntry, len(curFollowers))
	for _, entry := range curFollowers {
		record(entry).IsFollower = true
		curFollowerSet[entry.ExternalID] = entry
	}
	curFollowingSet := make(map[string]collector.RelationEntry, len(curFollowing))
	for _, entry := range curFollowing {
		record(entry).IsFollowing = true
		curFollowingSet[entry.ExternalID] = entry
	}

	result := &DiffResult{}
	for _, id := range order {
		rel := merged[id]
		rel.IsFollowingBack = rel.IsFollower && rel.IsFollowing
		result.Merged = append(result.Merged, rel)
		if rel.IsFollower {
			result.FollowerIDs = append(result.FollowerIDs, id)
		}
		if rel.IsFollowing {
			result.FollowingIDs = append(result.FollowingIDs, id)
		}
		if rel.IsFollowing && !rel.IsFollower {
			result.Counters.NonFollowers++
		}
	}
	result.Counters.TotalFollowers = len(result.FollowerIDs)
	result.Counters.TotalFollowing = len(result.FollowingIDs)

	event := func(id, username, changeType string) *models.RelationEvent {
		return &models.RelationEvent{
			TargetAccountID: accountID,
			ExternalID:      id,
			Username:        username,
			ChangeType:      changeType,
			DetectedAt:      detectedAt,
		}
	}

	prevFollowers := toSet(prevFollowerIDs)
	prevFollowing := toSet(prevFollowingIDs)

	// Gained relations, in collection order
	for _, entry := range curFollowers {
		if !prevFollowers[entry.ExternalID] {
			result.Events = append(result.Events, event(entry.ExternalID, entry.Username, models.ChangeNewFollower))
			result.Counters.NewFollowers++
		}
	}
	for _, entry := range curFollowing {
		if !prevFollowing[entry.ExternalID] {
			result.Events = append(result.Events, event(entry.ExternalID, entry.Username, models.ChangeStartedFollowing))
		}
	}

	// Lost relations, in previous-snapshot order. Usernames for departed
	// ids are not in the current capture; callers enrich them from the
	// stored relation rows before persisting.
	for _, id := range prevFollowerIDs {
		if _, ok := curFollowerSet[id]; !ok {
			result.Events = append(result.Events, event(id, "", models.ChangeUnfollowed))
			result.Counters.LostFollowers++
		}
	}
	for _, id := range prevFollowingIDs {
		if _, ok := curFollowingSet[id]; !ok {
			result.Events = append(result.Events, event(id, "", models.ChangeStoppedFollowing))
		}
	}

	return result
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
