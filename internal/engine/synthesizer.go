package engine

import (
	"context"
	"fmt"
	"strings"
)

const synthesizerInstructions = `Combine the provided results into ONE coherent, natural response.

Rules:
- Write as if you personally gathered all the information
- Don't list results mechanically or say "Result 1:", "Result 2:"
- Create a flowing, unified answer
- The user asked one question, give one integrated answer
- Be concise but complete`

// Synthesizer merges several subtask results into one answer.
type Synthesizer struct {
	backend Backend
	chain   *Chain
}

// NewSynthesizer creates a synthesizer that tries models in order.
func NewSynthesizer(backend Backend, synthesizerModels []string) *Synthesizer {
	return &Synthesizer{backend: backend, chain: NewChain(synthesizerModels)}
}

// Synthesize asks the model chain for one unified answer. If every model
// fails, or ctx is cancelled, the results are concatenated as "id: text"
// lines in insertion order.
func (s *Synthesizer) Synthesize(ctx context.Context, request string, results *ResultSet) string {
	prompt := SynthesisPrompt(request, results)

	out, err := s.chain.Run(ctx, "synthesizer", func(ctx context.Context, model string) (string, error) {
		return s.backend.Invoke(ctx, Invocation{
			Name:         "Synthesizer",
			Instructions: synthesizerInstructions,
			Request:      prompt,
			Model:        model,
		})
	})
	if err != nil {
		debugLog("[synthesizer] %v, using simple concatenation", err)
		return Concatenate(results)
	}
	return out
}

// SynthesisPrompt labels each result and places them under the request.
func SynthesisPrompt(request string, results *ResultSet) string {
	entries := results.Entries()
	blocks := make([]string, len(entries))
	for i, e := range entries {
		blocks[i] = fmt.Sprintf("[%s]:\n%s", e.ID, e.Text)
	}
	return fmt.Sprintf("Original Request: %s\n\nGathered Information:\n%s", request, strings.Join(blocks, "\n\n"))
}

// Concatenate renders results as "id: text" lines in insertion order.
func Concatenate(results *ResultSet) string {
	entries := results.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.ID + ": " + e.Text
	}
	return strings.Join(lines, "\n")
}
