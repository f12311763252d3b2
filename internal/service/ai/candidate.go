package ai

import "google.golang.org/genai"

// FirstText applies the candidate rule shared by chat and document answers:
// the first candidate must carry content with at least one part, and that
// part's text must be non-empty.
func FirstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", false
	}
	part := cand.Content.Parts[0]
	if part == nil || part.Text == "" {
		return "", false
	}
	return part.Text, true
}
