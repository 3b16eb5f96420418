package technique

// DefaultOutputStructure is the JSON skeleton requested when the caller does
// not supply one.
const DefaultOutputStructure = `{
  "analysis": "your detailed analysis here",
  "confidence": "high|medium|low",
  "key_findings": ["finding 1", "finding 2", "..."],
  "total_count": null,
  "details": []
}`

// AddStructuredOutputRequest asks the model to answer inside a fenced JSON
// block shaped like structure, or DefaultOutputStructure when it is empty.
func AddStructuredOutputRequest(prompt, structure string) string {
	if structure == "" {
		structure = DefaultOutputStructure
	}
	return prompt + "\n\nPlease provide your response in the following JSON format:\n```json\n" + structure + "\n```"
}
