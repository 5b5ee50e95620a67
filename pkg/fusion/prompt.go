package fusion

import (
	"fmt"
	"strings"
)

const (
	closingInstruction = "Return ONLY the JSON object described above:"
	strictInstruction  = "CRITICAL: You must return ONLY valid JSON. " + closingInstruction
)

const promptTemplate = `You are an expert ER triage physician. Your job is to synthesize three signals to make a final, clinically sound admission decision.

You are given three inputs:
1) p_structured: probability of admission from a model trained on structured encounter data.
2) p_text: probability of admission from a text classifier reading the triage record.
3) human_note: short free-text note from a nurse or physician providing real-time context.

Your task:
- Interpret all three signals.
- Resolve disagreements between the signals.
- Produce ONE final admission decision.
- Provide ONE rationale explaining exactly WHY you chose "Admit" or "Discharge".
  * Your rationale MUST explicitly reference p_structured, p_text, and human_note.
  * It MUST give a clear clinical justification (e.g., high risk -> admit, stable symptoms -> discharge).

Output STRICTLY as a single valid JSON object with EXACTLY two keys:
{
  "decision": "Admit" | "Discharge",
  "rationale": "string (2-4 sentences explaining the reason for your decision based on p_structured, p_text, and human_note)"
}

Do NOT output anything else.
Do NOT add comments or markdown.

Please make a final decision based on this information:
- p_structured: %.2f
- p_text: %.2f
- human_note: %q

%s
`

// BuildPrompt renders the fusion prompt.
func BuildPrompt(structured, text float64, note string) string {
	return fmt.Sprintf(promptTemplate, structured, text, note, closingInstruction)
}

// Tighten rewrites the closing instruction after a parse failure. It is idempotent.
func Tighten(prompt string) string {
	if strings.Contains(prompt, strictInstruction) {
		return prompt
	}
	return strings.Replace(prompt, closingInstruction, strictInstruction, 1)
}
