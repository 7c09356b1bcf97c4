package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ashby/guidepost/internal/guideservice"
	"github.com/ashby/guidepost/internal/models"
	"github.com/ashby/guidepost/internal/store"
)

// ExploreRequest is the request body for streaming destination research.
type ExploreRequest struct {
	City     string `json:"city" example:"Tokyo" validate:"required"`
	Query    string `json:"query" example:"best ramen shops" validate:"required"`
	DraftID  string `json:"draftId,omitempty" example:"d1"`
	ParentID string `json:"parentId,omitempty"`
}

// Validate checks the explore request fields.
func (r ExploreRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.City, validation.Required),
		validation.Field(&r.Query, validation.Required, validation.Length(1, 500)),
	)
}

// TripRequest is the request body for itinerary generation.
type TripRequest struct {
	Description string `json:"description" example:"long weekend in Lisbon" validate:"required"`
	Duration    int    `json:"duration" example:"5"`
	Interests   string `json:"interests,omitempty"`
	TravelStyle string `json:"travelStyle,omitempty" example:"comfort"`
}

// Validate checks the trip request fields.
func (r TripRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.Duration, validation.Min(0), validation.Max(60)),
	)
}

// CreateDraftRequest is the request body for creating a draft session.
type CreateDraftRequest struct {
	ID          string `json:"id,omitempty"`
	Destination string `json:"destination" example:"Tokyo" validate:"required"`
}

// Validate checks the draft creation fields.
func (r CreateDraftRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Destination, validation.Required),
	)
}

// SavedItemRequest is the request body for saving a curated excerpt.
type SavedItemRequest struct {
	Content      string `json:"content" validate:"required"`
	QueryContext string `json:"queryContext,omitempty"`
}

// Validate checks the saved item fields.
func (r SavedItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

// GuideSectionPayload is one section in a guide submission.
type GuideSectionPayload struct {
	Title       string `json:"title"`
	Query       string `json:"query"`
	Body        string `json:"body" validate:"required"`
	RawResponse string `json:"raw_response,omitempty"`
}

// GuideSubmission is the request body for saving a guide.
type GuideSubmission struct {
	Destination     string                `json:"destination" validate:"required"`
	DestinationSlug string                `json:"destinationSlug,omitempty"`
	Title           string                `json:"title,omitempty"`
	Description     string                `json:"description,omitempty"`
	Sections        []GuideSectionPayload `json:"sections" validate:"required"`
	TotalSearches   int                   `json:"totalSearches,omitempty"`
}

// Validate checks the guide submission fields.
func (r GuideSubmission) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Destination, validation.Required),
		validation.Field(&r.Sections, validation.Required),
	)
}

// GuideStateRequest moves a guide to a new lifecycle state.
type GuideStateRequest struct {
	State string `json:"state" example:"published" validate:"required"`
}

// Validate checks the state request.
func (r GuideStateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.State, validation.Required, validation.In(
			string(models.GuideStateCandidate),
			string(models.GuideStateNeedsReview),
			string(models.GuideStatePublished),
			string(models.GuideStateDiscarded),
		)),
	)
}

// DraftListResponse wraps persisted draft listings.
type DraftListResponse struct {
	Drafts []models.Draft `json:"drafts" validate:"required"`
	Total  int            `json:"total" validate:"required"`
}

// GuideListResponse wraps paginated guide listings.
type GuideListResponse struct {
	Guides []models.Guide `json:"guides" validate:"required"`
	Total  int            `json:"total" validate:"required"`
}

// SearchResponse wraps full-text search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}

// SaveResult is the guide quality gate outcome (aliased from the domain layer).
type SaveResult = guideservice.SaveResult

// Suggestions is the destination suggestions response (aliased from the domain layer).
type Suggestions = guideservice.Suggestions
