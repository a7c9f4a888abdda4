package domain

// DefaultOrigin is the departure airport every search starts from.
const DefaultOrigin = "BOD"

// Destinations maps IATA city codes to the display name stored alongside results.
var Destinations = map[string]string{
	// Europe
	"LON": "Londres",
	"MAD": "Madrid",
	"BCN": "Barcelone",
	"ROM": "Rome",
	"AMS": "Amsterdam",
	"BER": "Berlin",
	"LIS": "Lisbonne",
	"DUB": "Dublin",
	"CPH": "Copenhague",
	"VIE": "Vienne",
	"PRG": "Prague",
	"BRU": "Bruxelles",
	"ATH": "Athènes",
	"WAW": "Varsovie",
	"BUD": "Budapest",
	"ZRH": "Zurich",
	"OSL": "Oslo",
	"STO": "Stockholm",
	"HEL": "Helsinki",
	"IST": "Istanbul",
	"MXP": "Milan",

	// Americas
	"NYC": "New York",
	"LAX": "Los Angeles",
	"SFO": "San Francisco",
	"MIA": "Miami",
	"CHI": "Chicago",
	"YUL": "Montréal",
	"YYZ": "Toronto",
	"YVR": "Vancouver",
	"MEX": "Mexico",
	"CUN": "Cancún",
	"GRU": "São Paulo",
	"EZE": "Buenos Aires",
	"SCL": "Santiago",
	"BOG": "Bogotá",
	"LIM": "Lima",
	"RIO": "Rio de Janeiro",

	// Middle East & Asia
	"DXB": "Dubaï",
	"DOH": "Doha",
	"AUH": "Abu Dhabi",
	"SIN": "Singapour",
	"HKG": "Hong Kong",
	"BKK": "Bangkok",
	"KUL": "Kuala Lumpur",
	"NRT": "Tokyo",
	"ICN": "Séoul",
	"PEK": "Pékin",
	"PVG": "Shanghai",
	"DEL": "Delhi",
	"BOM": "Mumbai",

	// Oceania
	"SYD": "Sydney",
	"MEL": "Melbourne",
	"AKL": "Auckland",
	"BNE": "Brisbane",
	"PER": "Perth",

	// Africa
	"JNB": "Johannesburg",
	"CPT": "Le Cap",
	"CAI": "Le Caire",
	"CMN": "Casablanca",
	"DKR": "Dakar",
	"NBO": "Nairobi",
}

// DestinationName returns the display name for a code, or the code itself
// when it is not part of the catalogue.
func DestinationName(code string) string {
	if name, ok := Destinations[code]; ok {
		return name
	}
	return code
}
