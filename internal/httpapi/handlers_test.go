package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crowdlab.org/internal/auth"
	"crowdlab.org/internal/challenge"
	"crowdlab.org/internal/landing"
	"crowdlab.org/internal/participant"
	"crowdlab.org/internal/terms"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

type testEnv struct {
	*apiClient
	people     *participant.InMemory
	challenges *challenge.InMemory
	content    *landing.InMemory
}

func newTestAPI(t *testing.T) *testEnv {
	t.Helper()

	t.Setenv("CROWDLAB_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	people := participant.NewInMemory()
	people.Reserve("admin", "moderator")

	termsProvider := terms.Static{Terms: &terms.Terms{ID: "t-1", Version: "v2"}}
	participants, err := participant.NewService(people, termsProvider)
	if err != nil {
		t.Fatalf("participant.NewService: %v", err)
	}

	challengeStore := challenge.NewInMemory(people)
	challenges, err := challenge.NewService(challengeStore)
	if err != nil {
		t.Fatalf("challenge.NewService: %v", err)
	}

	content := landing.NewInMemory()
	landingSvc, err := landing.NewService(content, challenges, people)
	if err != nil {
		t.Fatalf("landing.NewService: %v", err)
	}

	api := New(ReadyProbe{}, "test", participants, people, challenges, landingSvc, nil, 15*time.Minute)
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{
		apiClient:  &apiClient{baseURL: srv.URL, client: srv.Client(), t: t},
		people:     people,
		challenges: challengeStore,
		content:    content,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *apiClient) get(path, token string) *http.Response {
	return c.do(http.MethodGet, path, nil, token)
}

func (c *apiClient) post(path string, body any, token string) *http.Response {
	return c.do(http.MethodPost, path, body, token)
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *testEnv) confirmationTokenFor(email string) string {
	e.t.Helper()
	p, err := e.people.FindByEmail(context.Background(), email)
	if err != nil {
		e.t.Fatalf("FindByEmail: %v", err)
	}
	return p.ConfirmationToken
}

func TestRegisterConfirmLoginFlow(t *testing.T) {
	env := newTestAPI(t)

	resp := env.post("/v1/auth/register", map[string]any{
		"email":    "Alice@Example.org",
		"password": "correct horse",
		"name":     "alice_dupont",
	}, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	var created participant.Participant
	decodeBody(t, resp, &created)
	if created.Email != "alice@example.org" {
		t.Fatalf("email not normalized: %s", created.Email)
	}

	// Handles with characters outside the permitted set are rejected with a
	// field-level message.
	resp = env.post("/v1/auth/register", map[string]any{
		"email":    "other@example.org",
		"password": "correct horse",
		"name":     "not a handle!",
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid handle status = %d, want 400", resp.StatusCode)
	}
	var badReq struct {
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, resp, &badReq)
	if badReq.Fields["name"] == "" {
		t.Fatal("expected field message for name")
	}

	// Login before confirmation is rejected.
	resp = env.post("/v1/auth/login", map[string]any{
		"email":    "alice@example.org",
		"password": "correct horse",
	}, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unconfirmed login status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.post("/v1/auth/confirm", map[string]any{
		"token": env.confirmationTokenFor("alice@example.org"),
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.post("/v1/auth/login", map[string]any{
		"email":    "alice@example.org",
		"password": "correct horse",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var session sessionResponse
	decodeBody(t, resp, &session)
	if session.Token == "" {
		t.Fatal("missing session token")
	}

	resp = env.get("/v1/participants/me", session.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var me meResponse
	decodeBody(t, resp, &me)
	if me.Participant.ID != created.ID {
		t.Fatalf("me returned %s, want %s", me.Participant.ID, created.ID)
	}
	if me.TermsAccepted {
		t.Fatal("terms must start unaccepted")
	}
}

func TestAcceptTerms(t *testing.T) {
	env := newTestAPI(t)
	token, _ := env.seedSession(t, "bob@example.org", "bob", false)

	resp := env.post("/v1/participants/me/accept-terms", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept-terms status = %d", resp.StatusCode)
	}
	var p participant.Participant
	decodeBody(t, resp, &p)
	if p.TermsAcceptedVersion != "v2" {
		t.Fatalf("terms version = %s, want v2", p.TermsAcceptedVersion)
	}

	resp = env.get("/v1/participants/me", token)
	var me meResponse
	decodeBody(t, resp, &me)
	if !me.TermsAccepted {
		t.Fatal("terms must now read accepted")
	}
}

func TestOAuthCallbackResolvesIdentity(t *testing.T) {
	env := newTestAPI(t)

	resp := env.post("/v1/auth/oauth/callback", map[string]any{
		"provider": "github",
		"email":    "carol@example.org",
		"name":     "Carol M",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("oauth status = %d", resp.StatusCode)
	}
	var first sessionResponse
	decodeBody(t, resp, &first)
	if first.Token == "" {
		t.Fatal("missing session token")
	}
	if first.Participant.Name != "carol_m" {
		t.Fatalf("handle = %s, want carol_m", first.Participant.Name)
	}

	// Same email from a different provider resolves to the same account.
	resp = env.post("/v1/auth/oauth/callback", map[string]any{
		"provider": "oauth2_generic",
		"email":    "Carol@Example.org",
		"name":     "Different Name",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second oauth status = %d", resp.StatusCode)
	}
	var second sessionResponse
	decodeBody(t, resp, &second)
	if second.Participant.ID != first.Participant.ID {
		t.Fatalf("identity split: %s vs %s", second.Participant.ID, first.Participant.ID)
	}
	if second.Participant.Name != "carol_m" {
		t.Fatal("existing account must not be mutated by a later assertion")
	}
}

func TestSafeProfileLookup(t *testing.T) {
	env := newTestAPI(t)
	_, p := env.seedSession(t, "dora@example.org", "dora", false)

	resp := env.get("/v1/participants/"+p.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d", resp.StatusCode)
	}
	var profile profileResponse
	decodeBody(t, resp, &profile)
	if !profile.Found || profile.Name != "dora" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// Missing participants still answer 200, denying and defaulted.
	resp = env.get("/v1/participants/does-not-exist", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("missing profile status = %d, want 200", resp.StatusCode)
	}
	var missing profileResponse
	decodeBody(t, resp, &missing)
	if missing.Found {
		t.Fatal("missing profile must report found=false")
	}
	if missing.AvatarURL != participant.DefaultAvatarURL {
		t.Fatalf("avatar = %s, want default", missing.AvatarURL)
	}
	if missing.CanPost || missing.CanSubmit || missing.CanComment {
		t.Fatal("missing profile must deny all capabilities")
	}
}

func TestDisableEnableRequiresAdmin(t *testing.T) {
	env := newTestAPI(t)
	userToken, target := env.seedSession(t, "eve@example.org", "eve", false)
	adminToken, _ := env.seedSession(t, "root@example.org", "platform_admin", true)

	resp := env.post("/v1/participants/"+target.ID+"/disable", map[string]any{"reason": "spam"}, userToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin disable status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.post("/v1/participants/"+target.ID+"/disable", map[string]any{"reason": "spam"}, adminToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d", resp.StatusCode)
	}
	var disabled participant.Participant
	decodeBody(t, resp, &disabled)
	if !disabled.AccountDisabled || disabled.AccountDisabledReason != "spam" {
		t.Fatalf("unexpected disable state: %+v", disabled)
	}

	// A disabled account cannot log in.
	resp = env.post("/v1/auth/login", map[string]any{
		"email":    "eve@example.org",
		"password": "correct horse",
	}, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("disabled login status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.post("/v1/participants/"+target.ID+"/enable", nil, adminToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status = %d", resp.StatusCode)
	}
	var enabled participant.Participant
	decodeBody(t, resp, &enabled)
	if enabled.AccountDisabled || enabled.AccountDisabledReason != "" {
		t.Fatalf("disable state must clear atomically: %+v", enabled)
	}
}

func TestChallengeParticipationFlow(t *testing.T) {
	env := newTestAPI(t)
	ctx := context.Background()

	c := &challenge.Challenge{
		Title:        "Snake Species Identification",
		OrganizerID:  "org-1",
		Status:       challenge.StatusRunning,
		RulesVersion: 1,
	}
	if err := env.challenges.CreateChallenge(ctx, c); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}

	token, p := env.seedSession(t, "frank@example.org", "frank", false)
	adminToken, _ := env.seedSession(t, "ops@example.org", "ops_admin", true)

	// Unauthenticated join is rejected; browsing stays public.
	resp := env.post("/v1/challenges/"+c.ID+"/register", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous join status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.get("/v1/challenges/"+c.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("public challenge read status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.post("/v1/challenges/"+c.ID+"/register", nil, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("join status = %d", resp.StatusCode)
	}
	var entry challenge.Entry
	decodeBody(t, resp, &entry)
	if entry.Status != challenge.EntryPending {
		t.Fatalf("entry status = %s, want pending", entry.Status)
	}

	// Pending entries stay off the roster.
	var roster rosterResponse
	resp = env.get("/v1/challenges/"+c.ID+"/participants", "")
	decodeBody(t, resp, &roster)
	if roster.Total != 0 {
		t.Fatalf("roster total = %d, want 0", roster.Total)
	}

	resp = env.post("/v1/challenges/"+c.ID+"/participants/"+p.ID+"/approve", nil, token)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self-approve status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.post("/v1/challenges/"+c.ID+"/participants/"+p.ID+"/approve", nil, adminToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.get("/v1/challenges/"+c.ID+"/participants", "")
	decodeBody(t, resp, &roster)
	if roster.Total != 1 || roster.Items[0].ParticipantID != p.ID {
		t.Fatalf("unexpected roster: %+v", roster)
	}
}

func TestLandingAggregate(t *testing.T) {
	env := newTestAPI(t)

	env.content.AddPartner(landing.Partner{Name: "Lab A", ImageURL: "http://img/a", Visible: true})
	at := time.Now().UTC()
	env.content.AddPost(landing.BlogPost{Title: "Welcome", Slug: "welcome", Published: true, PublishedAt: &at})
	env.seedSession(t, "gina@example.org", "gina", false)

	resp := env.get("/v1/landing", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("landing status = %d", resp.StatusCode)
	}
	var page landing.Page
	decodeBody(t, resp, &page)
	if len(page.Partners) != 1 || len(page.Posts) != 1 || len(page.Participants) != 1 {
		t.Fatalf("unexpected landing sections: %+v", page)
	}
}

func TestHealthAndInfo(t *testing.T) {
	env := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := env.get(path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

// seedSession creates a confirmed active participant and a valid token for
// them, bypassing the HTTP registration flow.
func (e *testEnv) seedSession(t *testing.T, email, name string, admin bool) (string, *participant.Participant) {
	t.Helper()
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Now().UTC()
	p := &participant.Participant{
		Email:        email,
		Name:         name,
		Slug:         name,
		Provider:     participant.ProviderLocal,
		PasswordHash: hash,
		ConfirmedAt:  &now,
		Admin:        admin,
	}
	if err := e.people.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	token, err := auth.GenerateToken(p.ID, p.Name, p.Admin, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token, p
}
