package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vietddude/farewatch/internal/core/domain"
)

// DefaultMaxCards caps how many result cards are read from one page.
const DefaultMaxCards = 25

var fareClasses = map[string]string{
	"LIGHT":      "Light",
	"STANDARD":   "Standard",
	"FLEX":       "Flex",
	"BUSINESS":   "Business",
	"PREMIÈRE":   "First",
	"PREMIERE":   "First",
	"BASIC":      "Basic",
	"ÉCONOMIQUE": "Economy",
	"ECONOMIQUE": "Economy",
}

// FlightExtractor reads flight result cards from a search results page.
type FlightExtractor struct {
	origin   string
	maxCards int
	log      *slog.Logger
}

// NewFlightExtractor creates an extractor that stamps origin on every record.
func NewFlightExtractor(origin string) *FlightExtractor {
	return &FlightExtractor{
		origin:   origin,
		maxCards: DefaultMaxCards,
		log:      slog.Default().With("component", "extractor"),
	}
}

// Extract implements Extractor.
func (e *FlightExtractor) Extract(content string) []domain.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		e.log.Warn("Failed to parse page", "error", err)
		return nil
	}

	var records []domain.Record
	doc.Find("div.nrc6").EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= e.maxCards {
			return false
		}
		if r, ok := e.card(card); ok {
			records = append(records, r)
		} else {
			e.log.Debug("Skipping card without data", "index", i)
		}
		return true
	})

	return records
}

func (e *FlightExtractor) card(card *goquery.Selection) (domain.Record, bool) {
	times := card.Find("div.vmXl")
	departure := textOrNA(times.First())

	second := ""
	if times.Length() > 1 {
		second = times.Eq(1).Text()
	}
	direct := !strings.Contains(strings.ToLower(second), "escale")

	arrival := domain.NotAvailable
	switch {
	case !direct:
		arrival = textOrNA(times.Last())
	case times.Length() > 1:
		arrival = textOrNA(times.Eq(1))
	}

	fees := card.Find(".Oihj-top-fees .ac27").First().Children()
	hand := textOrNA(fees.Eq(0).Children().Eq(1))
	checked := textOrNA(fees.Eq(1).Children().Eq(1))

	layoverAirport, layoverDuration := domain.NotAvailable, domain.NotAvailable
	if !direct {
		stop := card.Find(".JWEO .c_cgF span span").First()
		layoverAirport = textOrNA(stop)
		if title, ok := stop.Attr("title"); ok && strings.TrimSpace(title) != "" {
			layoverDuration = layoverFromTitle(title)
		}
	}

	fields := map[string]string{
		"departure_time":      departure,
		"arrival_time":        arrival,
		"duration":            textOrNA(card.Find("div.xdW8").First()),
		"price":               textOrNA(card.Find("div.f8F1").First()),
		"destination_airport": textOrNA(card.Find("span.jLhY-airport-info").Last().Find("span").First()),
		"checked_baggage":     checked,
		"hand_baggage":        hand,
		"layover_airport":     layoverAirport,
		"layover_duration":    layoverDuration,
		"fare_class":          fareClass(card),
	}

	airlines := airlineNames(card)
	empty := len(airlines) == 0
	for _, v := range fields {
		if v != domain.NotAvailable {
			empty = false
			break
		}
	}
	if empty {
		return nil, false
	}
	if len(airlines) == 0 {
		airlines = []string{domain.NotAvailable}
	}

	r := domain.Record{
		"origin_airport": e.origin,
		"is_direct":      direct,
		"airlines":       airlines,
	}
	for k, v := range fields {
		r[k] = v
	}
	return r, true
}

func airlineNames(card *goquery.Selection) []string {
	var names []string
	card.Find(".c5iUd-leg-carrier img").Each(func(_ int, img *goquery.Selection) {
		if alt, ok := img.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			names = append(names, strings.TrimSpace(alt))
		}
	})
	return names
}

func fareClass(card *goquery.Selection) string {
	raw := strings.TrimSpace(card.Find(".M_JD-large-display .DOum-name").First().Text())
	if raw == "" {
		return domain.NotAvailable
	}
	return NormalizeFareClass(raw)
}

// NormalizeFareClass maps the site's French fare labels onto a fixed vocabulary.
// Unknown labels are returned trimmed.
func NormalizeFareClass(raw string) string {
	label := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Tarif "))
	if v, ok := fareClasses[strings.ToUpper(label)]; ok {
		return v
	}
	return label
}

// layoverFromTitle pulls "2 h 05" out of "Escale de 2 h 05 à Amsterdam".
func layoverFromTitle(title string) string {
	i := strings.Index(title, "escale de ")
	if i < 0 {
		i = strings.Index(title, "Escale de ")
	}
	if i < 0 {
		return strings.TrimSpace(title)
	}
	rest := title[i+len("escale de "):]
	if j := strings.Index(rest, " à"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func textOrNA(s *goquery.Selection) string {
	if s.Length() == 0 {
		return domain.NotAvailable
	}
	text := strings.Join(strings.Fields(s.Text()), " ")
	if text == "" {
		return domain.NotAvailable
	}
	return text
}
