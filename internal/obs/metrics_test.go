package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/metrics":                            "/metrics",
		"/v1/participants/01ABC":              "/v1/participants/:id",
		"/v1/participants/me":                 "/v1/participants/me",
		"/v1/participants/01ABC/disable":      "/v1/participants/:id/disable",
		"/v1/participants/01ABC/enable":       "/v1/participants/:id/enable",
		"/v1/challenges/01XYZ":                "/v1/challenges/:id",
		"/v1/challenges/01XYZ/participants":   "/v1/challenges/:id/participants",
		"/v1/challenges/01XYZ/register":       "/v1/challenges/:id/register",
		"/v1/challenges?page=2":               "/v1/challenges",
		"/v1/challenges/01XYZ/participants/01ABC/approve": "/v1/challenges/:id/participants/:pid/approve",
		"/v1/landing": "/v1/landing",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
