package grammar

// Feedback texts for results that did not come from the model.
const (
	feedbackNoText     = "No text content found"
	feedbackCallPrefix = "Error analyzing grammar: "
	feedbackBadOutput  = "Unable to parse AI response. Raw response: "
)

const promptTemplate = `Analyze the following text for grammar issues and provide corrections:

Text: %q

Please provide your analysis in the following JSON format:
{
    "is_grammatically_correct": true/false,
    "corrected_text": "corrected version of the text",
    "overall_feedback": "general feedback about the grammar and tell the user clearly where the grammar issues are"
}

If the text is grammatically correct, set is_grammatically_correct to true and provide the original text as corrected_text.
Be specific about any grammar issues found.`

const responseSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["is_grammatically_correct", "corrected_text", "overall_feedback"],
	"properties": {
		"is_grammatically_correct": {"type": "boolean"},
		"corrected_text": {"type": "string"},
		"overall_feedback": {"type": "string"}
	}
}`
