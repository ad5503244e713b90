package collector

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gramwatch/gramwatch/internal/models"
)

// RelationEntry is one account taken from a followers/following page
type RelationEntry struct {
	ExternalID string
	Username   string
	FullName   string
	AvatarURL  string
	IsVerified bool
	IsPrivate  bool
}

// ContentItem is one media item extracted from the platform
type ContentItem struct {
	ExternalID    string
	Shortcode     string
	MediaType     string
	Caption       string
	DisplayURL    string
	LikesCount    int64
	CommentsCount int64
	VideoViews    int64
	TakenAt       time.Time
}

// Profile carries the tracked account's public counters and identity
type Profile struct {
	ExternalID string
	Username   string
	FullName   string
	AvatarURL  string
	Biography  string
	IsPrivate  bool
	IsVerified bool
	Followers  int64
	Following  int64
	MediaCount int64
}

// relationPage mirrors the friendship list endpoint response
type relationPage struct {
	Users []struct {
		PK         json.Number `json:"pk"`
		PKID       string      `json:"pk_id"`
		Username   string      `json:"username"`
		FullName   string      `json:"full_name"`
		ProfilePic string      `json:"profile_pic_url"`
		IsVerified bool        `json:"is_verified"`
		IsPrivate  bool        `json:"is_private"`
	} `json:"users"`
	NextMaxID string `json:"next_max_id"`
	Status    string `json:"status"`
}

// parseRelationPage decodes one page of a relation list and returns the
// entries plus the continuation cursor (empty when exhausted)
func parseRelationPage(data []byte) ([]RelationEntry, string, error) {
	var page relationPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, "", fmt.Errorf("invalid relation page: %w", err)
	}

	entries := make([]RelationEntry, 0, len(page.Users))
	for _, u := range page.Users {
		id := u.PKID
		if id == "" {
			id = u.PK.String()
		}
		if id == "" || id == "0" || u.Username == "" {
			continue
		}
		entries = append(entries, RelationEntry{
			ExternalID: id,
			Username:   u.Username,
			FullName:   u.FullName,
			AvatarURL:  u.ProfilePic,
			IsVerified: u.IsVerified,
			IsPrivate:  u.IsPrivate,
		})
	}
	return entries, page.NextMaxID, nil
}

// userNode is the embedded profile object shared by the page payload and
// the web profile endpoint
type userNode struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	ProfilePic  string `json:"profile_pic_url_hd"`
	ProfilePicS string `json:"profile_pic_url"`
	Biography   string `json:"biography"`
	IsPrivate   bool   `json:"is_private"`
	IsVerified  bool   `json:"is_verified"`

	EdgeFollowedBy struct {
		Count int64 `json:"count"`
	} `json:"edge_followed_by"`
	EdgeFollow struct {
		Count int64 `json:"count"`
	} `json:"edge_follow"`
	EdgeTimeline struct {
		Count    int64 `json:"count"`
		PageInfo struct {
			HasNextPage bool   `json:"has_next_page"`
			EndCursor   string `json:"end_cursor"`
		} `json:"page_info"`
		Edges []struct {
			Node mediaNode `json:"node"`
		} `json:"edges"`
	} `json:"edge_owner_to_timeline_media"`
}

// mediaNode is the embedded media object
type mediaNode struct {
	ID        string `json:"id"`
	Shortcode string `json:"shortcode"`
	Typename  string `json:"__typename"`
	IsVideo   bool   `json:"is_video"`
	Display   string `json:"display_url"`
	TakenAt   int64  `json:"taken_at_timestamp"`

	EdgeCaption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	EdgeLikedBy struct {
		Count int64 `json:"count"`
	} `json:"edge_liked_by"`
	EdgePreviewLike struct {
		Count int64 `json:"count"`
	} `json:"edge_media_preview_like"`
	EdgeComment struct {
		Count int64 `json:"count"`
	} `json:"edge_media_to_comment"`
	VideoViewCount int64 `json:"video_view_count"`
}

// profileDoc covers the layouts the profile data has been observed in:
// the window._sharedData entry_data wrapper, a bare graphql wrapper, and
// the web profile endpoint's data wrapper
type profileDoc struct {
	EntryData struct {
		ProfilePage []struct {
			Graphql struct {
				User userNode `json:"user"`
			} `json:"graphql"`
		} `json:"ProfilePage"`
	} `json:"entry_data"`
	Graphql struct {
		User userNode `json:"user"`
	} `json:"graphql"`
	Data struct {
		User userNode `json:"user"`
	} `json:"data"`
}

// parseProfileDoc extracts the profile and its embedded timeline items
func parseProfileDoc(data []byte) (*Profile, []ContentItem, error) {
	var doc profileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid profile document: %w", err)
	}

	user := doc.Graphql.User
	if user.Username == "" && len(doc.EntryData.ProfilePage) > 0 {
		user = doc.EntryData.ProfilePage[0].Graphql.User
	}
	if user.Username == "" {
		user = doc.Data.User
	}
	if user.Username == "" {
		return nil, nil, fmt.Errorf("no user node in profile document")
	}

	avatar := user.ProfilePic
	if avatar == "" {
		avatar = user.ProfilePicS
	}
	profile := &Profile{
		ExternalID: user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		AvatarURL:  avatar,
		Biography:  user.Biography,
		IsPrivate:  user.IsPrivate,
		IsVerified: user.IsVerified,
		Followers:  user.EdgeFollowedBy.Count,
		Following:  user.EdgeFollow.Count,
		MediaCount: user.EdgeTimeline.Count,
	}

	items := make([]ContentItem, 0, len(user.EdgeTimeline.Edges))
	for _, edge := range user.EdgeTimeline.Edges {
		if item := contentFromNode(&edge.Node); item != nil {
			items = append(items, *item)
		}
	}
	return profile, items, nil
}

// itemDoc covers the layouts a single media page embeds its data in
type itemDoc struct {
	Graphql struct {
		ShortcodeMedia mediaNode `json:"shortcode_media"`
	} `json:"graphql"`
	EntryData struct {
		PostPage []struct {
			Graphql struct {
				ShortcodeMedia mediaNode `json:"shortcode_media"`
			} `json:"graphql"`
		} `json:"PostPage"`
	} `json:"entry_data"`
}

// parseItemDoc extracts one media item from a permalink page payload
func parseItemDoc(data []byte) (*ContentItem, error) {
	var doc itemDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid media document: %w", err)
	}

	node := doc.Graphql.ShortcodeMedia
	if node.ID == "" && len(doc.EntryData.PostPage) > 0 {
		node = doc.EntryData.PostPage[0].Graphql.ShortcodeMedia
	}
	item := contentFromNode(&node)
	if item == nil {
		return nil, fmt.Errorf("no media node in document")
	}
	return item, nil
}

// contentFromNode converts an embedded media node; returns nil for nodes
// missing an id
func contentFromNode(node *mediaNode) *ContentItem {
	if node.ID == "" {
		return nil
	}

	caption := ""
	if len(node.EdgeCaption.Edges) > 0 {
		caption = node.EdgeCaption.Edges[0].Node.Text
	}
	likes := node.EdgeLikedBy.Count
	if likes == 0 {
		likes = node.EdgePreviewLike.Count
	}

	return &ContentItem{
		ExternalID:    node.ID,
		Shortcode:     node.Shortcode,
		MediaType:     mediaTypeOf(node.Typename, node.IsVideo),
		Caption:       caption,
		DisplayURL:    node.Display,
		LikesCount:    likes,
		CommentsCount: node.EdgeComment.Count,
		VideoViews:    node.VideoViewCount,
		TakenAt:       time.Unix(node.TakenAt, 0).UTC(),
	}
}

// mediaTypeOf maps a graphql typename to the stored media type
func mediaTypeOf(typename string, isVideo bool) string {
	switch {
	case strings.Contains(typename, "Sidecar"):
		return models.MediaTypeCarousel
	case strings.Contains(typename, "Video") || isVideo:
		return models.MediaTypeVideo
	default:
		return models.MediaTypeImage
	}
}
