package entity

import (
	"strings"
	"unicode/utf8"
)

type BusinessType string

const (
	BusinessRestaurant           BusinessType = "restaurant"
	BusinessSalon                BusinessType = "salon"
	BusinessRetail               BusinessType = "retail"
	BusinessMedical              BusinessType = "medical"
	BusinessAutomotive           BusinessType = "automotive"
	BusinessProfessionalServices BusinessType = "professional_services"
	BusinessHotel                BusinessType = "hotel"
)

// BusinessTypes lists every supported business type in a stable order.
var BusinessTypes = []BusinessType{
	BusinessRestaurant,
	BusinessSalon,
	BusinessRetail,
	BusinessMedical,
	BusinessAutomotive,
	BusinessProfessionalServices,
	BusinessHotel,
}

type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneApologetic   Tone = "apologetic"
	ToneGrateful     Tone = "grateful"
	ToneFormal       Tone = "formal"
)

var Tones = []Tone{ToneProfessional, ToneFriendly, ToneApologetic, ToneGrateful, ToneFormal}

const (
	MinReviewLength = 10
	MaxReviewLength = 2000
)

// ReviewInput is one review submitted for response generation.
type ReviewInput struct {
	Text         string       `json:"review_text"`
	BusinessType BusinessType `json:"business_type"`
	Tone         Tone         `json:"tone"`
	BusinessName string       `json:"business_name"`
}

// Validate checks the review text length and business name. Unknown business
// types and tones are accepted and resolved to defaults downstream.
func (r ReviewInput) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(r.Text))
	if n < MinReviewLength || n > MaxReviewLength {
		return NewValidationError("review_text must be between 10 and 2000 characters")
	}
	if strings.TrimSpace(r.BusinessName) == "" {
		return NewValidationError("business_name is required")
	}
	return nil
}

// BatchItem is a review inside a batch request, identified by the caller.
type BatchItem struct {
	ReviewID string `json:"review_id"`
	Text     string `json:"review_text"`
}
