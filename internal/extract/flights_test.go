package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/vietddude/farewatch/internal/core/domain"
)

const directCard = `
<div class="nrc6">
  <div class="vmXl vmXl-mod-variant-large"><span>07:05</span></div>
  <div class="vmXl vmXl-mod-variant-large"><span>07:30</span></div>
  <div class="xdW8"><div class="vmXl">1 h 25</div></div>
  <span class="jLhY-airport-info"><span>BOD</span></span>
  <span class="jLhY-airport-info"><span>LGW</span><span>Gatwick</span></span>
  <div class="c5iUd-leg-carrier"><img alt="easyJet" src="x.png"></div>
  <div class="nrc6-price-section">
    <div class="Oihj-top-fees"><div class="ac27">
      <div><div>icon</div><div>1</div></div>
      <div><div>icon</div><div>0</div></div>
    </div></div>
    <div class="f8F1"><div class="f8F1-price-text">89 €</div></div>
    <div class="M_JD-large-display"><div class="DOum-name">Tarif ÉCONOMIQUE</div></div>
  </div>
</div>`

const layoverCard = `
<div class="nrc6">
  <div class="vmXl">10:15</div>
  <div class="vmXl">1 escale</div>
  <div class="vmXl">18:40</div>
  <div class="JWEO"><div class="c_cgF c_cgF-mod-variant-full-airport">
    <span><span title="Escale de 2 h 05 à Amsterdam">AMS</span></span>
  </div></div>
  <div class="c5iUd-leg-carrier"><img alt="KLM"><img alt="Air France"></div>
  <div class="f8F1">412 €</div>
</div>`

const emptyCard = `<div class="nrc6"><div class="unrelated">ad</div></div>`

func page(cards ...string) string {
	return "<html><body><div id='listWrapper'>" + strings.Join(cards, "") + "</div></body></html>"
}

func TestFlightExtractor_DirectFlight(t *testing.T) {
	records := NewFlightExtractor("BOD").Extract(page(directCard))
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	r := records[0]
	expect := map[string]any{
		"departure_time":      "07:05",
		"arrival_time":        "07:30",
		"duration":            "1 h 25",
		"price":               "89 €",
		"origin_airport":      "BOD",
		"destination_airport": "LGW",
		"hand_baggage":        "1",
		"checked_baggage":     "0",
		"layover_airport":     domain.NotAvailable,
		"fare_class":          "Economy",
		"is_direct":           true,
	}
	for k, want := range expect {
		if r[k] != want {
			t.Errorf("%s: expected %v, got %v", k, want, r[k])
		}
	}

	airlines, _ := r["airlines"].([]string)
	if len(airlines) != 1 || airlines[0] != "easyJet" {
		t.Errorf("Expected [easyJet], got %v", r["airlines"])
	}
}

func TestFlightExtractor_Layover(t *testing.T) {
	records := NewFlightExtractor("BOD").Extract(page(layoverCard))
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r["is_direct"] != false {
		t.Errorf("Expected connecting flight, got is_direct=%v", r["is_direct"])
	}
	if r["arrival_time"] != "18:40" {
		t.Errorf("Expected arrival from last time block, got %v", r["arrival_time"])
	}
	if r["layover_airport"] != "AMS" {
		t.Errorf("Expected layover AMS, got %v", r["layover_airport"])
	}
	if r["layover_duration"] != "2 h 05" {
		t.Errorf("Expected layover duration 2 h 05, got %v", r["layover_duration"])
	}
	if r["hand_baggage"] != domain.NotAvailable {
		t.Errorf("Expected missing baggage to be N/A, got %v", r["hand_baggage"])
	}
	if airlines, _ := r["airlines"].([]string); len(airlines) != 2 {
		t.Errorf("Expected 2 airlines, got %v", r["airlines"])
	}
}

func TestFlightExtractor_SkipsEmptyCards(t *testing.T) {
	records := NewFlightExtractor("BOD").Extract(page(emptyCard, directCard, emptyCard))
	if len(records) != 1 {
		t.Errorf("Expected empty cards to be dropped, got %d records", len(records))
	}
}

func TestFlightExtractor_CapsCards(t *testing.T) {
	cards := make([]string, 30)
	for i := range cards {
		cards[i] = fmt.Sprintf(`<div class="nrc6"><div class="f8F1">%d €</div></div>`, 100+i)
	}

	records := NewFlightExtractor("BOD").Extract(page(cards...))
	if len(records) != DefaultMaxCards {
		t.Errorf("Expected %d records, got %d", DefaultMaxCards, len(records))
	}
}

func TestFlightExtractor_NoResults(t *testing.T) {
	for _, content := range []string{"", "not html at all", page()} {
		if records := NewFlightExtractor("BOD").Extract(content); len(records) != 0 {
			t.Errorf("Expected no records for %q, got %d", content, len(records))
		}
	}
}

func TestNormalizeFareClass(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Tarif Light", "Light"},
		{"STANDARD", "Standard"},
		{"Économique", "Economy"},
		{"economique", "Economy"},
		{"Première", "First"},
		{"Basic", "Basic"},
		{"Eco Plus", "Eco Plus"},
	}

	for _, tt := range tests {
		if got := NormalizeFareClass(tt.in); got != tt.want {
			t.Errorf("NormalizeFareClass(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
