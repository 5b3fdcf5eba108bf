// Package platform holds helpers shared by the ingredient detector backends.
package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNoIngredients is returned when a model reply holds no ingredient list.
var ErrNoIngredients = errors.New("no ingredient list in model response")

// DetectPrompt asks a vision model for the ingredients visible in a photo.
const DetectPrompt = "List the food ingredients visible in this image. " +
	"Respond with a single JSON array of short, lowercase, singular ingredient names, for example [\"egg\", \"milk\"]. " +
	"If there is no food in the image respond with []. Do not use markdown formatting."

// ParseIngredientList extracts the JSON string array from a model reply,
// which may be wrapped in prose or markdown fences. Blank and repeated names
// are dropped.
func ParseIngredientList(reply string) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start == -1 || end == -1 || start > end {
		return nil, fmt.Errorf("%w: %q", ErrNoIngredients, reply)
	}

	var raw []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredient list: %w. Raw response: %s", err, reply)
	}

	seen := make(map[string]bool, len(raw))
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, n)
	}
	return names, nil
}

// ImageFormat sniffs the image type of data and returns its short name,
// "jpeg" or "png". Other types default to "jpeg".
func ImageFormat(data []byte) string {
	if http.DetectContentType(data) == "image/png" {
		return "png"
	}
	return "jpeg"
}
