// Package extract turns captured page content into records.
package extract

import "github.com/vietddude/farewatch/internal/core/domain"

// Extractor parses page content. It never fails: unreadable content yields
// no records, and unreadable fields carry domain.NotAvailable.
type Extractor interface {
	Extract(content string) []domain.Record
}

// Func adapts a function to the Extractor interface.
type Func func(content string) []domain.Record

func (f Func) Extract(content string) []domain.Record { return f(content) }
