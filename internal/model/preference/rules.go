package preference

import "strings"

// Category names used by the planner form. The first form draft used "go"
// and "connect"; both spellings are honoured.
const (
	CategoryEat      = "eat"
	CategoryLocation = "location"
	CategoryGo       = "go"
	CategoryWatch    = "watch"
	CategoryGenre    = "genre"
	CategoryIntimacy = "physical_connection_intimacy"
	CategoryConnect  = "connect"
)

// Option labels that drive derived state.
const (
	LabelNoScreens    = "No Screens"
	LabelCookTogether = "Cook Together"
	LabelTakeOut      = "Take Out"
	LabelHome         = "Home"
)

var (
	intimacyCategories = []string{CategoryIntimacy, CategoryConnect}
	locationCategories = []string{CategoryLocation, CategoryGo}
	refusalMarkers     = []string{"no thanks", "pass", "none", "no"}
)

// Rule derives normalized state from a full record. Rules must not mutate
// their input.
type Rule func(Preferences) Preferences

// Rules are applied in order by Normalize.
var Rules = []Rule{
	ClearGenreWithoutScreens,
	StayHomeForHomeDining,
}

// Normalize applies every rule to a copy of p.
func Normalize(p Preferences) Preferences {
	out := p.Clone()
	for _, rule := range Rules {
		out = rule(out)
	}
	return out
}

// ClearGenreWithoutScreens drops genre choices when the partner asked for no screens.
func ClearGenreWithoutScreens(p Preferences) Preferences {
	if !p.Has(CategoryWatch, LabelNoScreens) {
		return p
	}
	out := p.Clone()
	if _, ok := out.Selections[CategoryGenre]; ok {
		out.Selections[CategoryGenre] = []string{}
	}
	return out
}

// StayHomeForHomeDining forces the location to Home when cooking together or
// ordering take out.
func StayHomeForHomeDining(p Preferences) Preferences {
	if !p.Has(CategoryEat, LabelCookTogether) && !p.Has(CategoryEat, LabelTakeOut) {
		return p
	}
	out := p.Clone()
	category := CategoryLocation
	for _, candidate := range locationCategories {
		if _, ok := out.Selections[candidate]; ok {
			category = candidate
			break
		}
	}
	out.Selections[category] = []string{LabelHome}
	return out
}

// RefusesIntimacy reports whether any intimacy category carries a refusal
// marker, whether it was sent as a list or as a single string.
func (p Preferences) RefusesIntimacy() bool {
	for _, category := range intimacyCategories {
		for _, label := range p.Selected(category) {
			if isRefusal(label) {
				return true
			}
		}
		if text, ok := p.Notes[category]; ok && isRefusal(text) {
			return true
		}
	}
	return false
}

func isRefusal(label string) bool {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for _, marker := range refusalMarkers {
		if normalized == marker {
			return true
		}
	}
	return false
}
