package models

import "time"

// GuideState is the lifecycle state of a saved guide.
type GuideState string

const (
	// GuideStateCandidate meets the automatic quality threshold and is
	// pending publication.
	GuideStateCandidate GuideState = "candidate"
	// GuideStateNeedsReview was captured but requires editorial review.
	GuideStateNeedsReview GuideState = "needs_review"
	// GuideStatePublished is visible in the explore catalog.
	GuideStatePublished GuideState = "published"
	// GuideStateDiscarded was rejected or fell below the quality threshold.
	GuideStateDiscarded GuideState = "discarded"
)

// GuideSection is one section of a guide, derived 1:1 from a finished
// search unit at save time.
type GuideSection struct {
	Heading     string `json:"sectionTitle"`
	Query       string `json:"query"`
	Body        string `json:"response"`
	RawResponse string `json:"rawResponse,omitempty"`
}

// Persona captures the traveler profile used to color future research.
type Persona struct {
	Name        string    `json:"name,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	TravelStyle string    `json:"travelStyle,omitempty"`
	Interests   []string  `json:"interests,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Guide is a named, shareable bundle of completed search units for one
// destination.
type Guide struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	Destination      string         `json:"destination"`
	DestinationSlug  string         `json:"destinationSlug"`
	Sections         []GuideSection `json:"items"`
	State            GuideState     `json:"state"`
	QualityScore     float64        `json:"qualityScore"`
	TotalWordCount   int            `json:"totalWordCount"`
	UniqueQueries    int            `json:"uniqueQueries"`
	ContentSignature string         `json:"-"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}
