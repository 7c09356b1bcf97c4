// Package guideservice coordinates the guide catalog: quality gating,
// deduplication, suggestion caching, and the persona document.
package guideservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashby/guidepost/internal/apperr"
	"github.com/ashby/guidepost/internal/checksum"
	"github.com/ashby/guidepost/internal/docstore"
	"github.com/ashby/guidepost/internal/models"
	"github.com/ashby/guidepost/internal/store"
)

// Verdict is the outcome of a guide submission.
type Verdict string

const (
	VerdictAccepted     Verdict = "accepted"
	VerdictDuplicate    Verdict = "duplicate"
	VerdictInsufficient Verdict = "insufficient"
)

// Submission is a guide save request before gating.
type Submission struct {
	Destination     string
	DestinationSlug string
	Title           string
	Description     string
	Sections        []models.GuideSection
	TotalSearches   int
}

// SaveResult reports what the quality gate decided.
type SaveResult struct {
	Verdict      Verdict       `json:"status"`
	GuideID      string        `json:"guideId,omitempty"`
	State        string        `json:"state,omitempty"`
	QualityScore float64       `json:"qualityScore,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Guide        *models.Guide `json:"-"`
}

// Suggestions is a cached or freshly built suggestion list for a
// destination.
type Suggestions struct {
	Destination     string   `json:"destination"`
	DestinationSlug string   `json:"destinationSlug"`
	Suggestions     []string `json:"suggestions"`
	Cached          bool     `json:"cached"`
}

// NotifyFunc receives catalog events for fan-out.
type NotifyFunc func(event string, payload any)

// Service coordinates the catalog database and the document store.
type Service struct {
	db     store.GuideCatalog
	docs   docstore.Store
	logger *slog.Logger
	notify NotifyFunc
}

// NewService creates a guide service. notify may be nil.
func NewService(db store.GuideCatalog, docs docstore.Store, logger *slog.Logger, notify NotifyFunc) *Service {
	return &Service{db: db, docs: docs, logger: logger, notify: notify}
}

// Quality gate thresholds.
const (
	minSections      = 2
	minTotalWords    = 350
	minUniqueQueries = 2
	candidateScore   = 0.55
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

func wordCount(text string) int {
	return len(wordRe.FindAllString(text, -1))
}

// qualityScore blends length, structure, and query diversity into a
// 0..1 score rounded to three decimals.
func qualityScore(totalWords, sections, uniqueQueries int) float64 {
	if sections == 0 {
		return 0
	}
	wordScore := min(float64(totalWords)/800, 1.0)
	sectionScore := min(float64(sections)/6, 1.0)
	diversityScore := min(float64(uniqueQueries)/float64(sections), 1.0)

	score := wordScore*0.45 + sectionScore*0.35 + diversityScore*0.2
	return float64(int(score*1000+0.5)) / 1000
}

// SaveGuide runs a submission through the quality gate and persists it
// when it passes. Thin or duplicate content is rejected with an explicit
// verdict rather than an error.
func (s *Service) SaveGuide(_ context.Context, sub Submission) (SaveResult, error) {
	if len(sub.Sections) < minSections {
		return SaveResult{Verdict: VerdictInsufficient, Reason: "not_enough_sections"}, nil
	}

	var bodies []string
	for _, sec := range sub.Sections {
		if sec.Body != "" {
			bodies = append(bodies, checksum.Normalize(sec.Body))
		}
	}
	if len(bodies) == 0 {
		return SaveResult{Verdict: VerdictInsufficient, Reason: "empty_sections"}, nil
	}

	signature := checksum.Signature(bodies)
	if existing, err := s.db.GetBySignature(signature); err == nil {
		return SaveResult{
			Verdict: VerdictDuplicate,
			GuideID: existing.ID,
			State:   string(existing.State),
			Guide:   existing,
		}, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return SaveResult{}, err
	}

	totalWords := 0
	for _, b := range bodies {
		totalWords += wordCount(b)
	}
	uniq := make(map[string]struct{})
	for _, sec := range sub.Sections {
		if q := checksum.Normalize(sec.Query); q != "" {
			uniq[q] = struct{}{}
		}
	}

	if totalWords < minTotalWords || len(uniq) < minUniqueQueries {
		return SaveResult{Verdict: VerdictInsufficient, Reason: "low_quality"}, nil
	}

	score := qualityScore(totalWords, len(sub.Sections), len(uniq))
	state := models.GuideStateNeedsReview
	if score >= candidateScore {
		state = models.GuideStateCandidate
	}

	destination := strings.TrimSpace(sub.Destination)
	slug := strings.ToLower(strings.TrimSpace(sub.DestinationSlug))
	if slug == "" {
		slug = Slugify(destination)
	}
	title := strings.TrimSpace(sub.Title)
	if title == "" {
		title = destination + " Guide"
	}

	now := time.Now()
	guide := models.Guide{
		ID:               "guide_" + shortHex(),
		Title:            title,
		Description:      strings.TrimSpace(sub.Description),
		Destination:      destination,
		DestinationSlug:  slug,
		State:            state,
		QualityScore:     score,
		TotalWordCount:   totalWords,
		UniqueQueries:    len(uniq),
		ContentSignature: signature,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i, sec := range sub.Sections {
		body := strings.TrimSpace(sec.Body)
		if body == "" {
			continue
		}
		heading := strings.TrimSpace(sec.Heading)
		if heading == "" {
			heading = fmt.Sprintf("Section %d", i+1)
		}
		raw := sec.RawResponse
		if raw == "" {
			raw = body
		}
		guide.Sections = append(guide.Sections, models.GuideSection{
			Heading:     heading,
			Query:       strings.TrimSpace(sec.Query),
			Body:        body,
			RawResponse: raw,
		})
	}

	if err := s.db.InsertGuide(guide); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			// Lost the race with an identical submission.
			res := SaveResult{Verdict: VerdictDuplicate}
			if winner, lookupErr := s.db.GetBySignature(signature); lookupErr == nil {
				res.GuideID = winner.ID
				res.State = string(winner.State)
				res.Guide = winner
			}
			return res, nil
		}
		return SaveResult{}, err
	}

	s.appendSavedList(guide)
	s.logger.Info("guide saved",
		slog.String("id", guide.ID),
		slog.String("state", string(state)),
		slog.Float64("quality", score))
	if s.notify != nil {
		s.notify("guide.saved", map[string]any{
			"guideId": guide.ID,
			"state":   string(state),
			"title":   guide.Title,
		})
	}

	return SaveResult{
		Verdict:      VerdictAccepted,
		GuideID:      guide.ID,
		State:        string(state),
		QualityScore: score,
		Guide:        &guide,
	}, nil
}

// GetGuide returns one guide with its sections.
func (s *Service) GetGuide(_ context.Context, id string) (*models.Guide, error) {
	return s.db.GetGuide(id)
}

// ListGuides returns guides newest first with optional state and slug
// filters.
func (s *Service) ListGuides(_ context.Context, limit, offset int, state, slug string) ([]models.Guide, int, error) {
	return s.db.ListGuides(limit, offset, state, slug)
}

// SetGuideState moves a guide through its review lifecycle.
func (s *Service) SetGuideState(_ context.Context, id string, state models.GuideState) error {
	switch state {
	case models.GuideStateCandidate, models.GuideStateNeedsReview,
		models.GuideStatePublished, models.GuideStateDiscarded:
	default:
		return fmt.Errorf("guideservice: unknown state %q", state)
	}
	return s.db.SetGuideState(id, state)
}

// DeleteGuide removes a guide from the catalog.
func (s *Service) DeleteGuide(_ context.Context, id string) error {
	return s.db.DeleteGuide(id)
}

// Search delegates full-text search over guide sections.
func (s *Service) Search(_ context.Context, query string, limit int) ([]store.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Suggestions returns starter queries for a destination, serving from
// the cache when possible and falling back to a static list otherwise.
func (s *Service) Suggestions(_ context.Context, slug string) (Suggestions, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	name := Humanize(slug)

	cached, err := s.db.GetSuggestions(slug)
	if err == nil {
		return Suggestions{Destination: name, DestinationSlug: slug, Suggestions: cached, Cached: true}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return Suggestions{}, err
	}

	items := []string{
		"Best things to do in " + name,
		"Where to stay in " + name,
		"Top restaurants in " + name,
	}
	if err := s.db.UpsertSuggestions(slug, items); err != nil {
		s.logger.Warn("suggestion cache write failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()))
	}
	return Suggestions{Destination: name, DestinationSlug: slug, Suggestions: items, Cached: false}, nil
}

// Persona returns the traveler persona document, or an empty persona
// when none has been written yet.
func (s *Service) Persona(_ context.Context) (models.Persona, error) {
	data, err := s.docs.Read(docstore.KeyPersona)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Persona{}, nil
		}
		return models.Persona{}, err
	}
	var p models.Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Persona{}, fmt.Errorf("guideservice: bad persona document: %w", err)
	}
	return p, nil
}

// SetPersona replaces the traveler persona document.
func (s *Service) SetPersona(_ context.Context, p models.Persona) error {
	p.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("guideservice: marshal persona: %w", err)
	}
	return s.docs.Write(docstore.KeyPersona, data)
}

// savedListEntry is one line in the saved_lists document, a compact
// history of accepted guides.
type savedListEntry struct {
	GuideID         string    `json:"guideId"`
	Title           string    `json:"title"`
	DestinationSlug string    `json:"destinationSlug"`
	State           string    `json:"state"`
	SavedAt         time.Time `json:"savedAt"`
}

func (s *Service) appendSavedList(g models.Guide) {
	var entries []savedListEntry
	if data, err := s.docs.Read(docstore.KeySavedLists); err == nil {
		_ = json.Unmarshal(data, &entries)
	}
	entries = append(entries, savedListEntry{
		GuideID:         g.ID,
		Title:           g.Title,
		DestinationSlug: g.DestinationSlug,
		State:           string(g.State),
		SavedAt:         g.CreatedAt,
	})
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	if err := s.docs.Write(docstore.KeySavedLists, data); err != nil {
		s.logger.Warn("saved list write failed", slog.String("error", err.Error()))
	}
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a destination name and collapses runs of
// non-alphanumerics into single dashes.
func Slugify(name string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "destination"
	}
	return slug
}

// Humanize turns a slug back into a display name.
func Humanize(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
