package models

import "time"

// Content type classifications the scoring model may assign to a profile.
const (
	ContentTypeEducational   = "educativo"
	ContentTypeEntertainment = "entretenimiento"
	ContentTypePromotional   = "promocional"
	ContentTypeMixed         = "mixto"
)

// ContentTypes lists every valid dominant_content_type value.
var ContentTypes = []string{
	ContentTypeEducational,
	ContentTypeEntertainment,
	ContentTypePromotional,
	ContentTypeMixed,
}

// Scores holds the five visual dimensions, each an integer in [1,5].
type Scores struct {
	ColorPalette       int `json:"color_palette"`
	VisualNoise        int `json:"visual_noise"`
	GraphicConsistency int `json:"graphic_consistency"`
	VisualQuality      int `json:"visual_quality"`
	HumanPresence      int `json:"human_presence"`
}

// Values returns the scores in their fixed dimension order.
func (s Scores) Values() []int {
	return []int{s.ColorPalette, s.VisualNoise, s.GraphicConsistency, s.VisualQuality, s.HumanPresence}
}

// Sum adds the five dimension scores.
func (s Scores) Sum() int {
	total := 0
	for _, v := range s.Values() {
		total += v
	}
	return total
}

// ProfileSummary is the subset of the scraped profile record returned to clients.
type ProfileSummary struct {
	Username      string `json:"username"`
	ProfileURL    string `json:"profile_url"`
	FullName      string `json:"full_name,omitempty"`
	Followers     int64  `json:"followers"`
	PostsCount    int64  `json:"posts_count"`
	Biography     string `json:"biography,omitempty"`
	Category      string `json:"category,omitempty"`
	ProfilePicURL string `json:"profile_pic_url,omitempty"`
	Verified      bool   `json:"verified"`
}

// AnalysisResult is the payload stored on a job once it reaches status done.
type AnalysisResult struct {
	Profile             ProfileSummary `json:"profile"`
	Scores              Scores         `json:"scores"`
	TotalScore          float64        `json:"total_score"`
	DominantContentType string         `json:"dominant_content_type"`
	Interpretation      string         `json:"interpretation"`
	ImagesAnalyzed      int            `json:"images_analyzed"`
	PostsAnalyzed       int            `json:"posts_analyzed"`
	Provider            string         `json:"provider"`
	Model               string         `json:"model,omitempty"`
	AnalyzedAt          time.Time      `json:"analyzed_at"`
}
