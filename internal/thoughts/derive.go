package thoughts

import (
	"fmt"
	"sort"
	"strings"
)

const defaultMood = MoodCalm

// recomputeDerivedFields refreshes the thought-level attributes computed from
// blocks: location and weather display strings from the first location block
// in array order, and mood and primary emotion from the median-intensity mood
// block. Every block-mutating entry point calls this before persisting.
func recomputeDerivedFields(thought *Thought) {
	thought.Location = ""
	thought.Weather = ""
	for _, block := range thought.Blocks {
		if location, ok := block.Location(); ok {
			thought.Location = formatLocation(location)
			thought.Weather = formatWeather(location.Weather)
			break
		}
	}

	moods := make([]MoodInfo, 0, len(thought.Blocks))
	for _, block := range thought.Blocks {
		if mood, ok := block.Mood(); ok {
			moods = append(moods, mood)
		}
	}
	if len(moods) == 0 {
		thought.Mood = defaultMood
		thought.PrimaryEmotion = ""
		return
	}

	sort.SliceStable(moods, func(i, j int) bool {
		return moods[i].Intensity < moods[j].Intensity
	})
	median := moods[len(moods)/2]
	thought.Mood = Mood(median.Primary)
	thought.PrimaryEmotion = median.Emoji
}

// formatLocation renders the location display string as "Name, City, Country"
// with absent parts skipped.
func formatLocation(location LocationInfo) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{location.Name, location.City, location.Country} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// formatWeather renders the weather display string as "Condition, N°", empty
// when the location carries no weather.
func formatWeather(weather *WeatherInfo) string {
	if weather == nil {
		return ""
	}
	if strings.TrimSpace(weather.Condition) == "" {
		return fmt.Sprintf("%.0f°", weather.Temperature)
	}
	return fmt.Sprintf("%s, %.0f°", weather.Condition, weather.Temperature)
}
