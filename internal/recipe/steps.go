package recipe

import "strings"

// StepDelimiter separates steps inside Recipe.Instructions.
const StepDelimiter = ". "

// SplitInstructions breaks instructions into display steps. Each step is
// trimmed, empty steps are dropped, and every step ends with a period.
func SplitInstructions(instructions string) []string {
	parts := strings.Split(instructions, StepDelimiter)
	steps := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasSuffix(p, ".") {
			p += "."
		}
		steps = append(steps, p)
	}
	return steps
}

// Steps returns the recipe's instructions split into steps.
func (r Recipe) Steps() []string {
	return SplitInstructions(r.Instructions)
}
