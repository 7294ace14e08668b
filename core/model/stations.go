package model

// Station is a fixed point of the Howrah section with its class and anchor.
type Station struct {
	Code  string
	Name  string
	Class StationClass
	Lat   float64
	Lon   float64
}

// Stations is the station table used by generation and ingestion.
var Stations = []Station{
	{Code: "HWH", Name: "Howrah", Class: StationMajor, Lat: 22.583, Lon: 88.342},
	{Code: "SDAH", Name: "Sealdah", Class: StationMajor, Lat: 22.576, Lon: 88.363},
	{Code: "SHM", Name: "Shalimar", Class: StationYard, Lat: 22.543, Lon: 88.319},
	{Code: "SRC", Name: "Santragachi", Class: StationYard, Lat: 22.492, Lon: 88.314},
	{Code: "BWN", Name: "Barddhaman", Class: StationJunction, Lat: 23.232, Lon: 87.861},
	{Code: "BDC", Name: "Bandel", Class: StationJunction, Lat: 22.664, Lon: 88.171},
	{Code: "NH", Name: "Naihati", Class: StationSuburban, Lat: 22.894, Lon: 88.427},
	{Code: "DKAE", Name: "Dankuni", Class: StationFreight, Lat: 22.680, Lon: 88.300},
	{Code: "KGP", Name: "Kharagpur", Class: StationMajor, Lat: 22.339, Lon: 87.325},
}

// Section bounds of the monitored area.
const (
	MinLat = 20.78
	MaxLat = 24.38
	MinLon = 86.41
	MaxLon = 90.29
)

// LookupStation finds a station by code.
func LookupStation(code string) (Station, bool) {
	for _, s := range Stations {
		if s.Code == code {
			return s, true
		}
	}
	return Station{}, false
}
