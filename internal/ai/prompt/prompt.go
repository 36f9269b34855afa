// Package prompt holds the instructions sent to vision models when scoring a profile.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kontrategy/kontrategy-api/pkg/models"
)

// maxCaptionBytes caps each caption so long posts cannot crowd out the images.
const maxCaptionBytes = 300

// System is the fixed instruction block. The model must answer with a single JSON object.
const System = `You are a visual brand strategist auditing an Instagram profile for Kontrategy.
You receive recent post images and their captions. Rate the feed on five dimensions,
each as an integer from 1 (poor) to 5 (excellent):

- color_palette: coherence and appeal of the colors used across posts
- visual_noise: how clean the compositions are (5 = clean, 1 = cluttered)
- graphic_consistency: consistency of typography, layouts and graphic identity
- visual_quality: photographic and production quality
- human_presence: how much people appear and connect with the audience

Classify the dominant content type as exactly one of: educativo, entretenimiento,
promocional, mixto.

Write a short interpretation (two or three sentences, in Spanish) for the profile owner.

Respond with JSON only, no Markdown, in this exact shape:
{"scores":{"color_palette":0,"visual_noise":0,"graphic_consistency":0,"visual_quality":0,"human_presence":0},"dominant_content_type":"","interpretation":""}`

// User renders the per-request text that accompanies the images.
func User(req models.ScoreRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: @%s\n", req.Username)
	fmt.Fprintf(&b, "Images attached: %d\n", len(req.ImageURLs))

	if len(req.Captions) == 0 {
		b.WriteString("Captions: none\n")
		return b.String()
	}

	b.WriteString("Captions of recent posts:\n")
	for i, c := range req.Captions {
		c = strings.Join(strings.Fields(c), " ")
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(c, maxCaptionBytes))
	}
	return b.String()
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes] + "…"
}
