package analysis

import (
	"fmt"
	"strings"
)

// SystemInstruction is the persona attached to every call.
const SystemInstruction = "You are an expert legal compliance AI. You verify visual content against real-world laws and regulations."

const promptRole = `You are a strict and meticulous Legal Compliance Auditor.

Your task is to analyze the provided screenshot image for inconsistencies with current regulations and laws.`

const promptSteps = `Please follow these steps:
1. **Visual & Text Extraction**: Describe clearly what is visible in the image (text, objects, layout).
2. **Regulation Search**: Use Google Search to find the most *current* and *relevant* laws, regulations, or industry standards applicable to the content found in the image. Cite specific article numbers or clause names if possible.
3. **Compliance Check**: Compare the image content against the found regulations. Identify any violations, potential risks, or ambiguities.
4. **Verdict**: specific conclusion (Compliant, Non-Compliant, or Needs Review).

Format your response using clear Markdown with headers (##), bullet points, and bold text for emphasis.
Start with a summary section.`

// Verdicts the model is asked to choose from.
var Verdicts = []string{"Compliant", "Non-Compliant", "Needs Review"}

// BuildPrompt assembles the auditor instruction. The focus clause is present only
// for a non-blank focus area and quotes it verbatim.
func BuildPrompt(focusArea string) string {
	var b strings.Builder
	b.WriteString(promptRole)
	b.WriteString("\n\n")
	if strings.TrimSpace(focusArea) != "" {
		_, _ = fmt.Fprintf(&b, "FOCUS AREA: The user is specifically concerned about regulations regarding: \"%s\".\n\n", focusArea)
	}
	b.WriteString(promptSteps)
	return b.String()
}
