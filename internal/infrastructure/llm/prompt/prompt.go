// Package prompt renders the grounded answer prompt shared by the generation providers.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/alpine-guardian/internal/core/domain"
)

// MaxContextDocuments is how many top-ranked documents are quoted in the prompt.
const MaxContextDocuments = 3

const role = "You are an experienced Swiss mountain guide and safety expert. " +
	"Answer questions about alpine safety with precise, practical advice. " +
	"Use only the information below; if it is insufficient, say so and point to the emergency number."

func Build(req domain.GenerationRequest) string {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\n\nContext:\n")
	if req.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", req.Location)
	}
	if w := req.Weather; w != nil && (w.Condition != "" || w.Temperature != nil) {
		b.WriteString("Weather: ")
		b.WriteString(w.Condition)
		if w.Temperature != nil {
			if w.Condition != "" {
				b.WriteString(", ")
			}
			b.WriteString(strconv.FormatFloat(*w.Temperature, 'f', -1, 64))
			b.WriteString("°C")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRelevant information:\n")
	for i, r := range req.Results {
		if i == MaxContextDocuments {
			break
		}
		fmt.Fprintf(&b, "- %s\n", r.Content)
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n\nAnswer (in the language of the question):", req.Query)
	return b.String()
}

// System returns the role instruction alone, for chat-style APIs.
func System() string {
	return role
}
