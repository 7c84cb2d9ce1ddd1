package vision

import (
	"fmt"
	"strings"

	"reelocator/internal/models"
)

// VisionPrompt instructs a multimodal model to propose a location from
// reel frames as strict JSON.
const VisionPrompt = `You are a travel reel analyzer.
You will see multiple frames from a short travel video.
Infer the most likely CITY and COUNTRY, and up to 8 famous landmarks.

Return STRICT JSON only. NO prose. NO markdown. NO explanation. NO surrounding ` + "```" + `.
The JSON schema must be:
{
  "city": "string",
  "country": "string",
  "landmarks": [
    {"name": "string", "confidence": 0.0-1.0, "evidence": "short reason"}
  ]
}
`

// GeoPrompt instructs a model to normalize a tentative location and attach
// a region plus an overall confidence.
const GeoPrompt = `You will receive a JSON blob with tentative city, country, and landmarks.
Normalize city and country names and add a region like 'Europe', 'Asia', 'North America', etc.
Also report an overall "confidence" in 0.0-1.0 for the normalized location.

Return STRICT JSON only:
{
  "city": "string",
  "country": "string",
  "region": "string",
  "confidence": 0.0-1.0,
  "landmarks": [
    {"name": "string", "confidence": 0.0-1.0}
  ]
}
`

// ItineraryPrompt builds the day-by-day planning prompt from the final
// candidate and the places search results.
func ItineraryPrompt(location models.LocationCandidate, places []models.Place, days int) string {
	var landmarks strings.Builder
	for _, lm := range location.Landmarks {
		fmt.Fprintf(&landmarks, "- %s (conf %.2f)\n", lm.Name, lm.Confidence)
	}
	if landmarks.Len() == 0 {
		landmarks.WriteString("- (none)\n")
	}

	var placeLines strings.Builder
	for i, p := range places {
		if i >= 12 {
			break
		}
		rating := "N/A"
		if p.Rating > 0 {
			rating = fmt.Sprintf("%.1f", p.Rating)
		}
		fmt.Fprintf(&placeLines, "- %s (rating %s) - %s\n", p.Name, rating, p.Address)
	}
	if placeLines.Len() == 0 {
		placeLines.WriteString("- (no places results found)\n")
	}

	city := location.City
	if city == "" {
		city = "the city"
	}

	return fmt.Sprintf(`You are a travel planner.

User showed a reel inferred to be from: %s, %s.

Detected landmarks:
%s
Real places from the places API:
%s
Create a realistic %d-day itinerary with morning, afternoon, and evening blocks for each day.
- Prioritize detected landmarks and places results.
- Include walking order where possible and approximate travel flow.
- Add 2-3 local food recommendations per day.
- Return Markdown with headings 'Day 1', 'Day 2', etc.
`, city, location.Country, landmarks.String(), placeLines.String(), days)
}

// StripCodeFences removes a surrounding markdown code fence from a model
// reply, tolerating a language tag after the opening fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop a language tag like "json"
		first := strings.TrimSpace(s[:i])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
