package analysis

import (
	"strconv"
	"strings"

	"github.com/kontrategy/kontrategy-api/internal/apify"
	"github.com/kontrategy/kontrategy-api/pkg/instagram"
	"github.com/kontrategy/kontrategy-api/pkg/models"
)

// Candidate fields, most preferred first.
var (
	imageFields   = []string{"displayUrl", "imageUrl", "thumbnailUrl", "thumbnailSrc"}
	captionFields = []string{"caption", "text", "alt"}
)

// Media is what the scoring model gets to see from a set of posts.
type Media struct {
	Images   []string
	Captions []string
	Posts    int // posts that contributed an image or a caption
}

// ExtractMedia pulls one image reference and one caption per post, in post
// order. Posts carrying neither are skipped.
func ExtractMedia(rows []apify.Record) Media {
	var m Media
	for _, row := range rows {
		img := firstString(row, imageFields)
		if img == "" {
			img = firstListString(row, "images")
		}
		caption := firstString(row, captionFields)
		if img == "" && caption == "" {
			continue
		}

		m.Posts++
		if img != "" {
			m.Images = append(m.Images, img)
		}
		if caption != "" {
			m.Captions = append(m.Captions, caption)
		}
	}
	return m
}

// ExtractProfile maps a scraped profile row onto the summary returned to clients.
func ExtractProfile(row apify.Record, ref instagram.Ref) models.ProfileSummary {
	username := strings.ToLower(stringField(row, "username"))
	if username == "" {
		username = ref.Username
	}
	return models.ProfileSummary{
		Username:      username,
		ProfileURL:    ref.URL,
		FullName:      stringField(row, "fullName"),
		Followers:     intField(row, "followersCount"),
		PostsCount:    intField(row, "postsCount"),
		Biography:     stringField(row, "biography"),
		Category:      firstString(row, []string{"businessCategoryName", "categoryName"}),
		ProfilePicURL: firstString(row, []string{"profilePicUrlHD", "profilePicUrl"}),
		Verified:      boolField(row, "verified"),
	}
}

func firstString(row apify.Record, fields []string) string {
	for _, f := range fields {
		if s := stringField(row, f); s != "" {
			return s
		}
	}
	return ""
}

func firstListString(row apify.Record, field string) string {
	list, ok := row[field].([]any)
	if !ok {
		return ""
	}
	for _, v := range list {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func stringField(row apify.Record, field string) string {
	s, _ := row[field].(string)
	return strings.TrimSpace(s)
}

func intField(row apify.Record, field string) int64 {
	switch v := row[field].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func boolField(row apify.Record, field string) bool {
	b, _ := row[field].(bool)
	return b
}
