package browser

import "github.com/vietddude/farewatch/internal/core/config"

// Fingerprint is the browser identity presented to the target.
type Fingerprint struct {
	UserAgent      string
	AcceptLanguage string
	Referer        string
}

// NewFingerprint builds a fingerprint from browser config.
func NewFingerprint(cfg config.BrowserConfig) Fingerprint {
	return Fingerprint{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Referer:        cfg.Referer,
	}
}

// Headers returns the request headers sent with every navigation.
func (f Fingerprint) Headers() map[string]string {
	h := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           f.AcceptLanguage,
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
		"Sec-Fetch-User":            "?1",
	}
	if f.Referer != "" {
		h["Referer"] = f.Referer
	}
	return h
}

// ProbeHeaders is the subset of headers worth sending on plain HTTP probes.
func (f Fingerprint) ProbeHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      f.UserAgent,
		"Accept-Language": f.AcceptLanguage,
	}
}

// hideAutomation runs before any page script.
const hideAutomation = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
window.chrome = window.chrome || {runtime: {}};`
