package participant

import "strings"

// NormalizeURL prefixes bare host URLs with http://. Runs before
// persistence-time validation; empty values pass through untouched.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "http://") || strings.Contains(raw, "https://") {
		return raw
	}
	return "http://" + raw
}

// normalizeURLs applies NormalizeURL to each social-link field independently.
func (p *Participant) normalizeURLs() {
	p.Website = NormalizeURL(p.Website)
	p.GitHub = NormalizeURL(p.GitHub)
	p.LinkedIn = NormalizeURL(p.LinkedIn)
	p.Twitter = NormalizeURL(p.Twitter)
}
