package cities

import "worldwise/internal/city"

// EmptyMessage：集合为空时的引导文案
const EmptyMessage = "Add your first city by clicking on a city on the map"

type Country struct {
	Country string `json:"country"`
	Emoji   string `json:"emoji"`
}

// Countries：按国家名去重，保留首次出现的顺序与 emoji
func Countries(cs []city.City) []Country {
	seen := make(map[string]struct{}, len(cs))
	out := make([]Country, 0, len(cs))
	for _, c := range cs {
		if _, ok := seen[c.Country]; ok {
			continue
		}
		seen[c.Country] = struct{}{}
		out = append(out, Country{Country: c.Country, Emoji: c.Emoji})
	}
	return out
}
