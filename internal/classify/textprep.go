package classify

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"

	"github.com/altsignal/tickersent/internal/models"
)

// Comprehend rejects documents over 5KB.
const maxClassifierBytes = 5000

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	input = urlPattern.ReplaceAllString(input, "")

	return input
}

// ConvertMarkdownToText flattens Reddit markdown into plain text before it is
// handed to any classifier.
func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plainText := strings.Join(strings.Fields(string(output)), " ")

	return RemoveLinks(plainText)
}

// TextForItem picks the text a classifier should see: title plus body for
// posts, body for comments.
func TextForItem(item models.ContentItem) string {
	var raw string
	switch item.Kind {
	case models.KindPost:
		raw = strings.TrimSpace(item.Title + " " + item.Body)
	case models.KindComment:
		raw = item.Body
	default:
		raw = item.Body
	}

	text := ConvertMarkdownToText(raw)
	if len(text) > maxClassifierBytes {
		text = text[:maxClassifierBytes]
	}
	return text
}
