package formengine

import (
	"sort"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var (
	countriesOnce sync.Once
	countries     OptionSet
)

// Countries returns the ISO 3166-1 countries keyed by alpha-2 code, sorted by English name
func Countries() OptionSet {
	countriesOnce.Do(func() {
		names := display.English.Regions()
		seen := make(map[string]struct{})
		for a := 'A'; a <= 'Z'; a++ {
			for b := 'A'; b <= 'Z'; b++ {
				region, err := language.ParseRegion(string([]rune{a, b}))
				if err != nil || !region.IsCountry() {
					continue
				}
				code := region.String()
				if code == "ZZ" {
					continue
				}
				if _, ok := seen[code]; ok {
					continue
				}
				seen[code] = struct{}{}
				name := names.Name(region)
				if name == "" {
					name = code
				}
				countries = append(countries, Option{Key: code, Label: name})
			}
		}
		sort.SliceStable(countries, func(i, j int) bool {
			return countries[i].Label < countries[j].Label
		})
	})
	return append(OptionSet(nil), countries...)
}
