// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"text/template"
)

// planPromptTmpl asks for a short plan. The plan is advisory and is not
// checked by the verifier.
var planPromptTmpl = template.Must(template.New("plan").Parse(`Create a short action plan to answer this question:
{{.Question}}
`))

// draftPromptTmpl is the writer prompt. Evidence arrives pre-rendered as
// "[<source> p.<page> <chunk_id>]\n<text>" blocks so the model can copy
// citation tags verbatim.
var draftPromptTmpl = template.Must(template.New("draft").Parse(`You are an AI strategy consultant writing a client-ready hospital advisory report.

STRICT RULES:
- Use ONLY the evidence below.
- Every section must include citation tags exactly like: [DocumentName p.X chunk_Y]
- Copy citation tags character for character from the evidence headers. Never invent a tag.
- If something cannot be supported, write: "Not found in sources."
- {{.SummaryHeading}} must be MAX {{.MaxSummaryWords}} words.

FORMAT YOUR OUTPUT EXACTLY AS:

1. {{.SummaryHeading}} (≤{{.MaxSummaryWords}} words)

2. Recommended Actions (bullet points)

3. Key Risks and Mitigation

4. Implementation Roadmap (Owner | Timeline | Confidence Level)

5. Sources (list citation tags used)

EVIDENCE:
{{.Evidence}}

QUESTION:
{{.Question}}
`))

type planPromptData struct {
	Question string
}

type draftPromptData struct {
	Question        string
	Evidence        string
	SummaryHeading  string
	MaxSummaryWords int
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
