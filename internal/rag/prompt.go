package rag

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a reliable assistant. Answer using ONLY the provided context. " +
	"If the context is insufficient, say you don't have enough information. " +
	"Cite sources like [1], [2]."

// Prompt is a system/user instruction pair.
type Prompt struct {
	System string
	User   string
}

// Compose renders the grounded prompt for question. Hits are numbered from 1
// in the order given so the model can cite them as [n].
func Compose(question string, hits []Hit) Prompt {
	srcLines := make([]string, 0, len(hits))
	ctxLines := make([]string, 0, len(hits))
	for i, h := range hits {
		srcLines = append(srcLines, fmt.Sprintf("[%d] %s", i+1, h.Label()))
		ctxLines = append(ctxLines, fmt.Sprintf("[%d] %s", i+1, h.Text))
	}

	sources := "(no sources)"
	if len(srcLines) > 0 {
		sources = strings.Join(srcLines, "\n")
	}
	context := "(no context found)"
	if len(ctxLines) > 0 {
		context = strings.Join(ctxLines, "\n\n")
	}

	var b strings.Builder
	b.WriteString("Sources:\n")
	b.WriteString(sources)
	b.WriteString("\n\nContext:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer in Traditional Chinese. Keep it concise and actionable.")

	return Prompt{System: systemPrompt, User: b.String()}
}
