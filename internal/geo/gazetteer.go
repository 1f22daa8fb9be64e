package geo

import (
	"strings"

	"funktaxi/internal/domain"
)

// knownPlaces is a curated gazetteer for the Usedom service area.
// These resolve instantly and never hit the geocoder.
var knownPlaces = map[string]domain.Place{
	"heringsdorf":           {Name: "Heringsdorf", Lat: 53.9533, Lon: 14.1633},
	"bahnhof heringsdorf":   {Name: "Bahnhof Heringsdorf", Lat: 53.9533, Lon: 14.1633},
	"ahlbeck":               {Name: "Ahlbeck", Lat: 53.9444, Lon: 14.1933},
	"seebrücke ahlbeck":     {Name: "Seebrücke Ahlbeck", Lat: 53.9444, Lon: 14.1933},
	"bansin":                {Name: "Bansin", Lat: 53.9633, Lon: 14.1433},
	"seebrücke bansin":      {Name: "Seebrücke Bansin", Lat: 53.9633, Lon: 14.1433},
	"zinnowitz":             {Name: "Zinnowitz", Lat: 54.0908, Lon: 13.9167},
	"bahnhof zinnowitz":     {Name: "Bahnhof Zinnowitz", Lat: 54.0908, Lon: 13.9167},
	"ückeritz":              {Name: "Ückeritz", Lat: 53.9878, Lon: 14.0519},
	"loddin":                {Name: "Loddin", Lat: 54.0083, Lon: 13.9917},
	"zempin":                {Name: "Zempin", Lat: 54.0194, Lon: 13.9611},
	"koserow":               {Name: "Koserow", Lat: 54.0681, Lon: 13.9764},
	"karlshagen":            {Name: "Karlshagen", Lat: 54.1078, Lon: 13.8333},
	"peenemünde":            {Name: "Peenemünde", Lat: 54.1422, Lon: 13.7753},
	"trassenheide":          {Name: "Trassenheide", Lat: 54.0997, Lon: 13.8875},
	"flughafen heringsdorf": {Name: "Flughafen Heringsdorf (HDF)", Lat: 53.8787, Lon: 14.1524},
	"swinemünde":            {Name: "Swinemünde", Lat: 53.9100, Lon: 14.2472},
	"świnoujście":           {Name: "Świnoujście", Lat: 53.9100, Lon: 14.2472},
}

// KnownPlace looks up an address in the gazetteer by its normalized form
func KnownPlace(address string) (domain.Place, bool) {
	p, ok := knownPlaces[strings.ToLower(strings.TrimSpace(address))]
	return p, ok
}

// GazetteerMatches returns gazetteer entries containing the query as a
// substring, used for disambiguation suggestions.
func GazetteerMatches(query string) []domain.Place {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var matches []domain.Place
	for key, place := range knownPlaces {
		if strings.Contains(key, query) || strings.Contains(strings.ToLower(place.Name), query) {
			matches = append(matches, place)
		}
	}
	return matches
}
