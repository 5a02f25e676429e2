package usecase

import "review-responder/internal/domain/entity"

// BusinessContext steers generation toward the vocabulary of a business type.
type BusinessContext struct {
	Keywords          []string
	SpecialtyGuidance string
}

// Strategy is the response approach for a review sentiment.
type Strategy struct {
	Approach         string
	RequiredElements []string
}

const (
	DefaultBusinessType = entity.BusinessProfessionalServices
	DefaultTone         = entity.ToneProfessional
)

var businessContexts = map[entity.BusinessType]BusinessContext{
	entity.BusinessRestaurant: {
		Keywords:          []string{"food", "service", "atmosphere", "menu", "staff", "dining experience"},
		SpecialtyGuidance: "Focus on food quality, service, and the dining atmosphere. Mention specific dishes or the team when the review does.",
	},
	entity.BusinessSalon: {
		Keywords:          []string{"stylist", "appointment", "treatment", "style", "relaxation", "results"},
		SpecialtyGuidance: "Focus on the stylist's skill, the treatment results, and how the client felt during the visit.",
	},
	entity.BusinessRetail: {
		Keywords:          []string{"products", "selection", "staff", "store", "shopping experience", "quality"},
		SpecialtyGuidance: "Focus on product selection and quality, staff helpfulness, and the overall shopping experience.",
	},
	entity.BusinessMedical: {
		Keywords:          []string{"care", "patient", "team", "comfort", "wellbeing", "appointment"},
		SpecialtyGuidance: "Focus on patient care and comfort. Never mention diagnoses, treatments, or any health information about the reviewer.",
	},
	entity.BusinessAutomotive: {
		Keywords:          []string{"repair", "vehicle", "technicians", "service", "honesty", "turnaround"},
		SpecialtyGuidance: "Focus on workmanship, honest communication about the vehicle, and turnaround time.",
	},
	entity.BusinessProfessionalServices: {
		Keywords:          []string{"expertise", "communication", "results", "client", "professionalism", "partnership"},
		SpecialtyGuidance: "Focus on expertise, clear communication, and the results delivered for the client.",
	},
	entity.BusinessHotel: {
		Keywords:          []string{"stay", "room", "guests", "amenities", "front desk", "hospitality"},
		SpecialtyGuidance: "Focus on the guest's stay, room comfort, amenities, and the hospitality of the staff.",
	},
}

var toneInstructions = map[entity.Tone]string{
	entity.ToneProfessional: "Use a professional, courteous register: polished and clear, warm but not casual.",
	entity.ToneFriendly:     "Use a friendly, conversational register: warm, personable, and approachable, as if talking to a regular.",
	entity.ToneApologetic:   "Use an apologetic register: take ownership, express sincere regret, and focus on making things right.",
	entity.ToneGrateful:     "Use a grateful register: express genuine appreciation for the customer and their feedback.",
	entity.ToneFormal:       "Use a formal register: respectful, precise language with no contractions or colloquialisms.",
}

var strategies = map[entity.Sentiment]Strategy{
	entity.SentimentPositive: {
		Approach: "Reinforce the positive experience and invite the customer back.",
		RequiredElements: []string{
			"thank the customer for the kind words",
			"highlight a specific detail they enjoyed",
			"invite them to return",
		},
	},
	entity.SentimentNegative: {
		Approach: "Acknowledge the problem, apologize sincerely, and offer a path to resolution.",
		RequiredElements: []string{
			"acknowledge the specific concern",
			"apologize without making excuses",
			"explain what will be done or offer to follow up directly",
			"invite the customer to give the business another chance",
		},
	},
	entity.SentimentNeutral: {
		Approach: "Appreciate the balanced feedback and show how the experience will improve.",
		RequiredElements: []string{
			"thank the customer for the feedback",
			"acknowledge what went well",
			"address the areas for improvement",
			"invite them to return",
		},
	},
}

// ResolveContext maps a business type to its guidance. Unknown types resolve
// to the professional_services context.
func ResolveContext(bt entity.BusinessType) BusinessContext {
	if c, ok := businessContexts[bt]; ok {
		return c
	}
	return businessContexts[DefaultBusinessType]
}

// ResolveTone maps a tone to its instruction text. Unknown tones resolve to
// the professional instruction.
func ResolveTone(t entity.Tone) string {
	if s, ok := toneInstructions[t]; ok {
		return s
	}
	return toneInstructions[DefaultTone]
}

// ResolveStrategy maps a sentiment label to a response strategy. Anything
// other than positive or negative is treated as neutral.
func ResolveStrategy(s entity.Sentiment) Strategy {
	if st, ok := strategies[s]; ok {
		return st
	}
	return strategies[entity.SentimentNeutral]
}

// NormalizeBusinessType returns bt if it is supported, the default otherwise.
func NormalizeBusinessType(bt entity.BusinessType) entity.BusinessType {
	if _, ok := businessContexts[bt]; ok {
		return bt
	}
	return DefaultBusinessType
}

// NormalizeTone returns t if it is supported, the default otherwise.
func NormalizeTone(t entity.Tone) entity.Tone {
	if _, ok := toneInstructions[t]; ok {
		return t
	}
	return DefaultTone
}
