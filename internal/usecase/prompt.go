package usecase

import (
	"fmt"
	"strings"

	"review-responder/internal/domain/entity"
)

const responseFormat = `{
  "responses": [
    {"response_text": "the full response", "word_count": 87, "key_points": ["point addressed", "another point"]}
  ]
}`

// ComposePrompt builds the generation prompt from the review and the
// resolved business, tone and sentiment guidance. It is deterministic.
func ComposePrompt(review string, bt entity.BusinessType, tone entity.Tone, businessName string, sentiment entity.SentimentResult) entity.Prompt {
	bc := ResolveContext(bt)
	strategy := ResolveStrategy(sentiment.Sentiment)

	var sys strings.Builder
	fmt.Fprintf(&sys, "You are an expert reputation manager writing public replies to customer reviews on behalf of %s, a %s business.\n\n",
		businessName, humanize(string(NormalizeBusinessType(bt))))

	sys.WriteString("BUSINESS CONTEXT:\n")
	sys.WriteString(bc.SpecialtyGuidance + "\n")
	fmt.Fprintf(&sys, "Relevant vocabulary: %s.\n\n", strings.Join(bc.Keywords, ", "))

	sys.WriteString("TONE:\n")
	sys.WriteString(ResolveTone(tone) + "\n\n")

	sys.WriteString("RESPONSE STRATEGY:\n")
	sys.WriteString(strategy.Approach + "\n")
	sys.WriteString("Every response must:\n")
	for _, el := range strategy.RequiredElements {
		fmt.Fprintf(&sys, "- %s\n", el)
	}
	sys.WriteString("\n")

	sys.WriteString("REQUIREMENTS:\n")
	fmt.Fprintf(&sys, "- Write exactly %d distinct responses.\n", entity.CandidateCount)
	sys.WriteString("- Each response is 2-4 sentences and 50-150 words.\n")
	fmt.Fprintf(&sys, "- Each response mentions the business name %q.\n", businessName)
	sys.WriteString("- Refer to details from the review; avoid generic or templated phrasing such as \"We value your feedback\".\n")
	sys.WriteString("- Do not invent facts, offers, or discounts that the review does not support.\n")
	sys.WriteString("- Do not sign the response with a personal name.\n\n")

	sys.WriteString("OUTPUT:\n")
	sys.WriteString("Return only a JSON object with this exact shape and no other text:\n")
	sys.WriteString(responseFormat)

	var user strings.Builder
	fmt.Fprintf(&user, "Review: %q\n", review)
	fmt.Fprintf(&user, "Business name: %s\n", businessName)
	fmt.Fprintf(&user, "Business type: %s\n", NormalizeBusinessType(bt))
	fmt.Fprintf(&user, "Requested tone: %s\n", NormalizeTone(tone))
	fmt.Fprintf(&user, "Review sentiment: %s\n", sentiment.Sentiment)
	if len(sentiment.KeyEmotions) > 0 {
		fmt.Fprintf(&user, "Customer emotions: %s\n", strings.Join(sentiment.KeyEmotions, ", "))
	}
	if len(sentiment.MainConcerns) > 0 {
		fmt.Fprintf(&user, "Main concerns: %s\n", strings.Join(sentiment.MainConcerns, ", "))
	}
	fmt.Fprintf(&user, "\nWrite %d responses to this review.", entity.CandidateCount)

	return entity.Prompt{System: sys.String(), User: user.String()}
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
