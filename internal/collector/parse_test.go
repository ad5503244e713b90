package collector

import (
	"testing"
	"time"

	"github.com/gramwatch/gramwatch/internal/models"
)

func TestParseRelationPage(t *testing.T) {
	data := []byte(`{
		"users": [
			{"pk": 111, "username": "alice", "full_name": "Alice A", "profile_pic_url": "https://cdn/a.jpg", "is_verified": true, "is_private": false},
			{"pk": 222, "pk_id": "222", "username": "bob", "is_private": true},
			{"pk": 0, "username": ""}
		],
		"next_max_id": "QVFE123",
		"status": "ok"
	}`)

	entries, cursor, err := parseRelationPage(data)
	if err != nil {
		t.Fatalf("parseRelationPage failed: %v", err)
	}
	if cursor != "QVFE123" {
		t.Errorf("Expected cursor QVFE123, got %q", cursor)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 valid entries, got %d", len(entries))
	}
	if entries[0].ExternalID != "111" || entries[0].Username != "alice" || !entries[0].IsVerified {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[1].ExternalID != "222" || !entries[1].IsPrivate {
		t.Errorf("Unexpected second entry: %+v", entries[1])
	}
}

func TestParseRelationPageLastPage(t *testing.T) {
	entries, cursor, err := parseRelationPage([]byte(`{"users": [], "status": "ok"}`))
	if err != nil {
		t.Fatalf("parseRelationPage failed: %v", err)
	}
	if len(entries) != 0 || cursor != "" {
		t.Errorf("Expected empty last page, got %d entries, cursor %q", len(entries), cursor)
	}
}

func TestParseRelationPageInvalid(t *testing.T) {
	if _, _, err := parseRelationPage([]byte(`{"users": [`)); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

const profileFixture = `{
	"graphql": {
		"user": {
			"id": "98765",
			"username": "coffeecart",
			"full_name": "Coffee Cart",
			"biography": "espresso on wheels",
			"profile_pic_url_hd": "https://cdn/pic_hd.jpg",
			"is_private": false,
			"is_verified": true,
			"edge_followed_by": {"count": 1000},
			"edge_follow": {"count": 150},
			"edge_owner_to_timeline_media": {
				"count": 2,
				"page_info": {"has_next_page": false, "end_cursor": ""},
				"edges": [
					{"node": {
						"id": "m1", "shortcode": "Cxy1", "__typename": "GraphImage",
						"display_url": "https://cdn/m1.jpg", "taken_at_timestamp": 1722470400,
						"edge_media_to_caption": {"edges": [{"node": {"text": "Great day #sun #fun"}}]},
						"edge_liked_by": {"count": 10},
						"edge_media_to_comment": {"count": 2}
					}},
					{"node": {
						"id": "m2", "shortcode": "Cxy2", "__typename": "GraphVideo", "is_video": true,
						"display_url": "https://cdn/m2.jpg", "taken_at_timestamp": 1722556800,
						"edge_media_to_caption": {"edges": [{"node": {"text": "#sun again"}}]},
						"edge_media_preview_like": {"count": 5},
						"edge_media_to_comment": {"count": 1},
						"video_view_count": 99
					}}
				]
			}
		}
	}
}`

func TestParseProfileDoc(t *testing.T) {
	profile, items, err := parseProfileDoc([]byte(profileFixture))
	if err != nil {
		t.Fatalf("parseProfileDoc failed: %v", err)
	}

	if profile.Username != "coffeecart" || profile.ExternalID != "98765" {
		t.Errorf("Unexpected profile identity: %+v", profile)
	}
	if profile.Followers != 1000 || profile.Following != 150 || profile.MediaCount != 2 {
		t.Errorf("Unexpected profile counters: %+v", profile)
	}
	if !profile.IsVerified || profile.IsPrivate {
		t.Errorf("Unexpected profile flags: %+v", profile)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	first := items[0]
	if first.ExternalID != "m1" || first.Shortcode != "Cxy1" {
		t.Errorf("Unexpected first item identity: %+v", first)
	}
	if first.MediaType != models.MediaTypeImage {
		t.Errorf("Expected IMAGE, got %s", first.MediaType)
	}
	if first.LikesCount != 10 || first.CommentsCount != 2 {
		t.Errorf("Unexpected first item engagement: %+v", first)
	}
	if first.Caption != "Great day #sun #fun" {
		t.Errorf("Unexpected caption: %q", first.Caption)
	}
	if !first.TakenAt.Equal(time.Unix(1722470400, 0).UTC()) {
		t.Errorf("Unexpected timestamp: %v", first.TakenAt)
	}

	second := items[1]
	if second.MediaType != models.MediaTypeVideo {
		t.Errorf("Expected VIDEO, got %s", second.MediaType)
	}
	// Preview-like count is used when edge_liked_by is absent
	if second.LikesCount != 5 {
		t.Errorf("Expected likes fallback 5, got %d", second.LikesCount)
	}
	if second.VideoViews != 99 {
		t.Errorf("Expected 99 video views, got %d", second.VideoViews)
	}
}

func TestParseProfileDocWebProfileShape(t *testing.T) {
	data := []byte(`{"data": {"user": {
		"id": "5", "username": "wrapped", "profile_pic_url": "https://cdn/s.jpg",
		"edge_followed_by": {"count": 7}, "edge_follow": {"count": 3},
		"edge_owner_to_timeline_media": {"count": 0, "edges": []}
	}}}`)

	profile, items, err := parseProfileDoc(data)
	if err != nil {
		t.Fatalf("parseProfileDoc failed: %v", err)
	}
	if profile.Username != "wrapped" || profile.Followers != 7 {
		t.Errorf("Unexpected profile: %+v", profile)
	}
	if profile.AvatarURL != "https://cdn/s.jpg" {
		t.Errorf("Expected small pic fallback, got %q", profile.AvatarURL)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
}

func TestParseProfileDocNoUser(t *testing.T) {
	if _, _, err := parseProfileDoc([]byte(`{"config": {}}`)); err == nil {
		t.Error("Expected error for document without user node")
	}
}

func TestParseItemDoc(t *testing.T) {
	data := []byte(`{"graphql": {"shortcode_media": {
		"id": "m9", "shortcode": "Cz99", "__typename": "GraphSidecar",
		"display_url": "https://cdn/m9.jpg", "taken_at_timestamp": 1722643200,
		"edge_media_to_caption": {"edges": [{"node": {"text": "carousel post @friend"}}]},
		"edge_liked_by": {"count": 42},
		"edge_media_to_comment": {"count": 7}
	}}}`)

	item, err := parseItemDoc(data)
	if err != nil {
		t.Fatalf("parseItemDoc failed: %v", err)
	}
	if item.ExternalID != "m9" || item.MediaType != models.MediaTypeCarousel {
		t.Errorf("Unexpected item: %+v", item)
	}
	if item.LikesCount != 42 || item.CommentsCount != 7 {
		t.Errorf("Unexpected engagement: %+v", item)
	}
}

func TestParseItemDocMissingNode(t *testing.T) {
	if _, err := parseItemDoc([]byte(`{"graphql": {}}`)); err == nil {
		t.Error("Expected error for missing media node")
	}
}

func TestMediaTypeOf(t *testing.T) {
	tests := []struct {
		typename string
		isVideo  bool
		expected string
	}{
		{"GraphImage", false, models.MediaTypeImage},
		{"GraphVideo", true, models.MediaTypeVideo},
		{"GraphSidecar", false, models.MediaTypeCarousel},
		{"XDTGraphSidecar", false, models.MediaTypeCarousel},
		{"", true, models.MediaTypeVideo},
		{"", false, models.MediaTypeImage},
	}

	for _, tt := range tests {
		if got := mediaTypeOf(tt.typename, tt.isVideo); got != tt.expected {
			t.Errorf("mediaTypeOf(%q, %v) = %s, want %s", tt.typename, tt.isVideo, got, tt.expected)
		}
	}
}
