package guideservice

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/ashby/guidepost/internal/models"
	"github.com/ashby/guidepost/internal/testutil"
)

func testService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	db := testutil.TestDB(t)
	_, docs := testutil.TestDocs(t)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	rec := &recorder{}
	return NewService(db, docs, logger, rec.notify), rec
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) notify(event string, _ any) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

// longBody produces a body with n distinct-ish words.
func longBody(seed string, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(seed)
		b.WriteString(" visit ")
	}
	return b.String()
}

func goodSubmission() Submission {
	return Submission{
		Destination: "Tokyo",
		Title:       "Tokyo Food and Temples",
		Sections: []models.GuideSection{
			{Heading: "Ramen", Query: "best ramen in Tokyo", Body: longBody("ramen", 120)},
			{Heading: "Temples", Query: "temples to visit", Body: longBody("temple", 120)},
		},
		TotalSearches: 2,
	}
}

func TestSaveGuideAccepted(t *testing.T) {
	svc, rec := testService(t)

	res, err := svc.SaveGuide(context.Background(), goodSubmission())
	if err != nil {
		t.Fatalf("SaveGuide: %v", err)
	}
	if res.Verdict != VerdictAccepted {
		t.Fatalf("verdict = %q, reason = %q", res.Verdict, res.Reason)
	}
	if !strings.HasPrefix(res.GuideID, "guide_") || len(res.GuideID) != len("guide_")+12 {
		t.Errorf("guide id = %q", res.GuideID)
	}
	if res.QualityScore <= 0 {
		t.Errorf("quality = %v", res.QualityScore)
	}
	if !rec.has("guide.saved") {
		t.Error("expected guide.saved notification")
	}

	got, err := svc.GetGuide(context.Background(), res.GuideID)
	if err != nil {
		t.Fatalf("GetGuide: %v", err)
	}
	if got.DestinationSlug != "tokyo" {
		t.Errorf("slug = %q", got.DestinationSlug)
	}
	if len(got.Sections) != 2 {
		t.Errorf("sections = %d", len(got.Sections))
	}
}

func TestSaveGuideTooFewSections(t *testing.T) {
	svc, _ := testService(t)
	sub := goodSubmission()
	sub.Sections = sub.Sections[:1]

	res, err := svc.SaveGuide(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != VerdictInsufficient || res.Reason != "not_enough_sections" {
		t.Errorf("got %q / %q", res.Verdict, res.Reason)
	}
}

func TestSaveGuideEmptyBodies(t *testing.T) {
	svc, _ := testService(t)
	sub := goodSubmission()
	sub.Sections[0].Body = ""
	sub.Sections[1].Body = ""

	res, err := svc.SaveGuide(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != VerdictInsufficient || res.Reason != "empty_sections" {
		t.Errorf("got %q / %q", res.Verdict, res.Reason)
	}
}

func TestSaveGuideThinContent(t *testing.T) {
	svc, _ := testService(t)
	sub := goodSubmission()
	sub.Sections[0].Body = "short"
	sub.Sections[1].Body = "also short"

	res, err := svc.SaveGuide(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != VerdictInsufficient || res.Reason != "low_quality" {
		t.Errorf("got %q / %q", res.Verdict, res.Reason)
	}
}

func TestSaveGuideRepeatedQuery(t *testing.T) {
	svc, _ := testService(t)
	sub := goodSubmission()
	sub.Sections[1].Query = sub.Sections[0].Query

	res, err := svc.SaveGuide(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != VerdictInsufficient || res.Reason != "low_quality" {
		t.Errorf("got %q / %q", res.Verdict, res.Reason)
	}
}

func TestSaveGuideDuplicate(t *testing.T) {
	svc, _ := testService(t)

	first, err := svc.SaveGuide(context.Background(), goodSubmission())
	if err != nil || first.Verdict != VerdictAccepted {
		t.Fatalf("first save: %v / %q", err, first.Verdict)
	}

	// Same bodies with different whitespace and case still collide.
	dup := goodSubmission()
	dup.Sections[0].Body = "  " + strings.ToUpper(dup.Sections[0].Body) + "\n"
	second, err := svc.SaveGuide(context.Background(), dup)
	if err != nil {
		t.Fatal(err)
	}
	if second.Verdict != VerdictDuplicate {
		t.Errorf("verdict = %q", second.Verdict)
	}
	if second.GuideID != first.GuideID {
		t.Errorf("duplicate should report existing id, got %q", second.GuideID)
	}
}

func TestQualityScore(t *testing.T) {
	cases := []struct {
		words, sections, queries int
		want                     float64
	}{
		{0, 0, 0, 0},
		{800, 6, 6, 1.0},
		{400, 3, 3, 0.6},
		{1600, 12, 12, 1.0},
	}
	for _, c := range cases {
		got := qualityScore(c.words, c.sections, c.queries)
		if diff := got - c.want; diff > 0.001 || diff < -0.001 {
			t.Errorf("qualityScore(%d,%d,%d) = %v, want %v", c.words, c.sections, c.queries, got, c.want)
		}
	}
}

func TestSetGuideStateLifecycle(t *testing.T) {
	svc, _ := testService(t)
	res, _ := svc.SaveGuide(context.Background(), goodSubmission())

	if err := svc.SetGuideState(context.Background(), res.GuideID, models.GuideStatePublished); err != nil {
		t.Fatalf("SetGuideState: %v", err)
	}
	got, _ := svc.GetGuide(context.Background(), res.GuideID)
	if got.State != models.GuideStatePublished {
		t.Errorf("state = %q", got.State)
	}
	if err := svc.SetGuideState(context.Background(), res.GuideID, "bogus"); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestSuggestionsCacheFallback(t *testing.T) {
	svc, _ := testService(t)

	first, err := svc.Suggestions(context.Background(), "new-york")
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if first.Cached {
		t.Error("first lookup should be uncached")
	}
	if first.Destination != "New York" {
		t.Errorf("destination = %q", first.Destination)
	}
	if len(first.Suggestions) != 3 || !strings.Contains(first.Suggestions[0], "New York") {
		t.Errorf("suggestions = %v", first.Suggestions)
	}

	second, err := svc.Suggestions(context.Background(), "new-york")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Error("second lookup should hit the cache")
	}
}

func TestPersonaRoundTrip(t *testing.T) {
	svc, _ := testService(t)

	empty, err := svc.Persona(context.Background())
	if err != nil {
		t.Fatalf("Persona: %v", err)
	}
	if empty.Summary != "" {
		t.Errorf("expected empty persona, got %+v", empty)
	}

	want := models.Persona{
		Name:        "Sam",
		Summary:     "Slow traveler, food first",
		TravelStyle: "budget",
		Interests:   []string{"street food", "hiking"},
	}
	if err := svc.SetPersona(context.Background(), want); err != nil {
		t.Fatalf("SetPersona: %v", err)
	}
	got, err := svc.Persona(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Sam" || len(got.Interests) != 2 {
		t.Errorf("persona = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped on write")
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Tokyo":           "tokyo",
		"New York City":   "new-york-city",
		"  São Paulo!  ":  "s-o-paulo",
		"":                "destination",
		"--- ":            "destination",
		"Rio de Janeiro":  "rio-de-janeiro",
		"SAN FRANCISCO 2": "san-francisco-2",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
