package httpapi

import (
	"context"
	"net/http"
	"testing"
)

func TestAuthRequiredForPrivateRoutes(t *testing.T) {
	env := newTestAPI(t)

	resp := env.get("/v1/participants/me", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me without token status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(http.MethodGet, "/v1/participants/me", nil, "not-a-jwt")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me with bad token status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	env := newTestAPI(t)

	for _, path := range []string{"/healthz", "/v1/info", "/v1/challenges", "/v1/landing"} {
		resp := env.get(path, "")
		if resp.StatusCode == http.StatusUnauthorized {
			t.Fatalf("%s should be public", path)
		}
		resp.Body.Close()
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	env := newTestAPI(t)
	_, p := env.seedSession(t, "grader@example.org", "grader", false)

	p.APIKey = "k3y-for-the-grader"
	if err := env.people.Update(context.Background(), p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, env.baseURL+"/v1/participants/me", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-API-Key", "k3y-for-the-grader")
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("api key auth status = %d", resp.StatusCode)
	}
	var me meResponse
	decodeBody(t, resp, &me)
	if me.Participant.ID != p.ID {
		t.Fatalf("api key resolved %s, want %s", me.Participant.ID, p.ID)
	}

	req.Header.Set("X-API-Key", "wrong")
	resp, err = env.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad api key status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer abc", "abc", false},
		{" Bearer  abc ", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("header %q: expected error", tc.header)
			}
			continue
		}
		if err != nil {
			t.Fatalf("header %q: %v", tc.header, err)
		}
		if got != tc.want {
			t.Fatalf("header %q: got %q, want %q", tc.header, got, tc.want)
		}
	}
}
