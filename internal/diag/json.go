package diag

import "encoding/json"

// jsonDiagnostic is the wire shape used at the language-server boundary.
// Offsets are byte positions into the normalized source.
type jsonDiagnostic struct {
	Severity string `json:"severity"`
	Phase    string `json:"phase"`
	File     string `json:"file"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	Message  string `json:"message"`
}

// ToJSON encodes the list deterministically, in accumulation order.
func (l *List) ToJSON() ([]byte, error) {
	out := make([]jsonDiagnostic, 0, len(l.diags))
	for _, d := range l.diags {
		span := d.Token.Span
		file := ""
		if span.File != nil {
			file = span.File.Name
		}
		out = append(out, jsonDiagnostic{
			Severity: d.Severity.String(),
			Phase:    string(d.Phase),
			File:     file,
			Row:      span.Row(),
			Col:      span.Col(),
			Offset:   span.Offset,
			Length:   span.Length,
			Message:  d.Message,
		})
	}
	return json.Marshal(out)
}
