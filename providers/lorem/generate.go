package lorem

import (
	"strings"

	loremgen "github.com/bozaro/golorem"

	"github.com/Borahm/modelfusion/core"
)

// Response is the result of one lorem generation.
type Response struct {
	Text       string `json:"text"`
	Words      int    `json:"words"`
	StopReason string `json:"stop_reason"`
}

// generate produces up to the word budget of s, cut before the first stop
// sequence. The prompt is ignored.
func generate(s core.Settings) Response {
	budget := s.MaxCompletionTokens
	if budget <= 0 {
		budget = DefaultMaxWords
	}

	gen := loremgen.New()
	words := make([]string, 0, budget)
	for len(words) < budget {
		words = append(words, strings.Fields(gen.Sentence(5, 15))...)
	}
	text := strings.Join(words[:budget], " ")

	resp := Response{Text: text, StopReason: StopReasonLength}
	for _, stop := range s.StopSequences {
		if stop == "" {
			continue
		}
		if i := strings.Index(resp.Text, stop); i >= 0 {
			resp.Text = resp.Text[:i]
			resp.StopReason = StopReasonStopSequence
		}
	}
	resp.Words = len(strings.Fields(resp.Text))
	return resp
}

// fragments splits text into words that keep their trailing space, so that
// concatenating the fragments restores text.
func fragments(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, " ")
}
