// Package registry holds the static catalog of tracked locations: the
// national average, every state plus DC, the major metro areas, and a handful
// of census-style regions. Loaded once, read-only afterwards.
package registry

import (
	"fmt"

	"ratewatcher/internal/model"
)

var locations = []model.Location{
	{Name: "National Average", Code: "US", Kind: model.KindNational},

	{Name: "Alabama", Code: "AL", Kind: model.KindState},
	{Name: "Alaska", Code: "AK", Kind: model.KindState},
	{Name: "Arizona", Code: "AZ", Kind: model.KindState},
	{Name: "Arkansas", Code: "AR", Kind: model.KindState},
	{Name: "California", Code: "CA", Kind: model.KindState},
	{Name: "Colorado", Code: "CO", Kind: model.KindState},
	{Name: "Connecticut", Code: "CT", Kind: model.KindState},
	{Name: "Delaware", Code: "DE", Kind: model.KindState},
	{Name: "District of Columbia", Code: "DC", Kind: model.KindState},
	{Name: "Florida", Code: "FL", Kind: model.KindState},
	{Name: "Georgia", Code: "GA", Kind: model.KindState},
	{Name: "Hawaii", Code: "HI", Kind: model.KindState},
	{Name: "Idaho", Code: "ID", Kind: model.KindState},
	{Name: "Illinois", Code: "IL", Kind: model.KindState},
	{Name: "Indiana", Code: "IN", Kind: model.KindState},
	{Name: "Iowa", Code: "IA", Kind: model.KindState},
	{Name: "Kansas", Code: "KS", Kind: model.KindState},
	{Name: "Kentucky", Code: "KY", Kind: model.KindState},
	{Name: "Louisiana", Code: "LA", Kind: model.KindState},
	{Name: "Maine", Code: "ME", Kind: model.KindState},
	{Name: "Maryland", Code: "MD", Kind: model.KindState},
	{Name: "Massachusetts", Code: "MA", Kind: model.KindState},
	{Name: "Michigan", Code: "MI", Kind: model.KindState},
	{Name: "Minnesota", Code: "MN", Kind: model.KindState},
	{Name: "Mississippi", Code: "MS", Kind: model.KindState},
	{Name: "Missouri", Code: "MO", Kind: model.KindState},
	{Name: "Montana", Code: "MT", Kind: model.KindState},
	{Name: "Nebraska", Code: "NE", Kind: model.KindState},
	{Name: "Nevada", Code: "NV", Kind: model.KindState},
	{Name: "New Hampshire", Code: "NH", Kind: model.KindState},
	{Name: "New Jersey", Code: "NJ", Kind: model.KindState},
	{Name: "New Mexico", Code: "NM", Kind: model.KindState},
	{Name: "New York", Code: "NY", Kind: model.KindState},
	{Name: "North Carolina", Code: "NC", Kind: model.KindState},
	{Name: "North Dakota", Code: "ND", Kind: model.KindState},
	{Name: "Ohio", Code: "OH", Kind: model.KindState},
	{Name: "Oklahoma", Code: "OK", Kind: model.KindState},
	{Name: "Oregon", Code: "OR", Kind: model.KindState},
	{Name: "Pennsylvania", Code: "PA", Kind: model.KindState},
	{Name: "Rhode Island", Code: "RI", Kind: model.KindState},
	{Name: "South Carolina", Code: "SC", Kind: model.KindState},
	{Name: "South Dakota", Code: "SD", Kind: model.KindState},
	{Name: "Tennessee", Code: "TN", Kind: model.KindState},
	{Name: "Texas", Code: "TX", Kind: model.KindState},
	{Name: "Utah", Code: "UT", Kind: model.KindState},
	{Name: "Vermont", Code: "VT", Kind: model.KindState},
	{Name: "Virginia", Code: "VA", Kind: model.KindState},
	{Name: "Washington", Code: "WA", Kind: model.KindState},
	{Name: "West Virginia", Code: "WV", Kind: model.KindState},
	{Name: "Wisconsin", Code: "WI", Kind: model.KindState},
	{Name: "Wyoming", Code: "WY", Kind: model.KindState},

	{Name: "Atlanta, GA", Code: "atlanta-ga", Kind: model.KindMetro},
	{Name: "Austin, TX", Code: "austin-tx", Kind: model.KindMetro},
	{Name: "Baltimore, MD", Code: "baltimore-md", Kind: model.KindMetro},
	{Name: "Boston, MA", Code: "boston-ma", Kind: model.KindMetro},
	{Name: "Charlotte, NC", Code: "charlotte-nc", Kind: model.KindMetro},
	{Name: "Chicago, IL", Code: "chicago-il", Kind: model.KindMetro},
	{Name: "Cincinnati, OH", Code: "cincinnati-oh", Kind: model.KindMetro},
	{Name: "Cleveland, OH", Code: "cleveland-oh", Kind: model.KindMetro},
	{Name: "Columbus, OH", Code: "columbus-oh", Kind: model.KindMetro},
	{Name: "Dallas, TX", Code: "dallas-tx", Kind: model.KindMetro},
	{Name: "Denver, CO", Code: "denver-co", Kind: model.KindMetro},
	{Name: "Detroit, MI", Code: "detroit-mi", Kind: model.KindMetro},
	{Name: "Houston, TX", Code: "houston-tx", Kind: model.KindMetro},
	{Name: "Indianapolis, IN", Code: "indianapolis-in", Kind: model.KindMetro},
	{Name: "Jacksonville, FL", Code: "jacksonville-fl", Kind: model.KindMetro},
	{Name: "Kansas City, MO", Code: "kansas-city-mo", Kind: model.KindMetro},
	{Name: "Las Vegas, NV", Code: "las-vegas-nv", Kind: model.KindMetro},
	{Name: "Los Angeles, CA", Code: "los-angeles-ca", Kind: model.KindMetro},
	{Name: "Miami, FL", Code: "miami-fl", Kind: model.KindMetro},
	{Name: "Minneapolis, MN", Code: "minneapolis-mn", Kind: model.KindMetro},
	{Name: "Nashville, TN", Code: "nashville-tn", Kind: model.KindMetro},
	{Name: "New York, NY", Code: "new-york-ny", Kind: model.KindMetro},
	{Name: "Orlando, FL", Code: "orlando-fl", Kind: model.KindMetro},
	{Name: "Philadelphia, PA", Code: "philadelphia-pa", Kind: model.KindMetro},
	{Name: "Phoenix, AZ", Code: "phoenix-az", Kind: model.KindMetro},
	{Name: "Portland, OR", Code: "portland-or", Kind: model.KindMetro},
	{Name: "Raleigh, NC", Code: "raleigh-nc", Kind: model.KindMetro},
	{Name: "San Antonio, TX", Code: "san-antonio-tx", Kind: model.KindMetro},
	{Name: "San Diego, CA", Code: "san-diego-ca", Kind: model.KindMetro},
	{Name: "San Francisco, CA", Code: "san-francisco-ca", Kind: model.KindMetro},
	{Name: "Seattle, WA", Code: "seattle-wa", Kind: model.KindMetro},
	{Name: "Tampa, FL", Code: "tampa-fl", Kind: model.KindMetro},

	{Name: "Northeast", Code: "northeast", Kind: model.KindRegional},
	{Name: "Southeast", Code: "southeast", Kind: model.KindRegional},
	{Name: "Midwest", Code: "midwest", Kind: model.KindRegional},
	{Name: "Southwest", Code: "southwest", Kind: model.KindRegional},
	{Name: "West", Code: "west", Kind: model.KindRegional},
	{Name: "Pacific Northwest", Code: "pacific-northwest", Kind: model.KindRegional},
	{Name: "Mountain", Code: "mountain", Kind: model.KindRegional},
	{Name: "South", Code: "south", Kind: model.KindRegional},
}

var byCode = func() map[string]model.Location {
	index := make(map[string]model.Location, len(locations))
	for _, loc := range locations {
		index[loc.Code] = loc
	}
	return index
}()

// All returns every tracked location. Callers must not mutate the result.
func All() []model.Location {
	return locations
}

// ByCode resolves a location code.
func ByCode(code string) (model.Location, error) {
	loc, ok := byCode[code]
	if !ok {
		return model.Location{}, fmt.Errorf("registry: unknown location code %q", code)
	}
	return loc, nil
}
