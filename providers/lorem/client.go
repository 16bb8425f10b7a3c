package lorem

import (
	"context"
	"time"

	"github.com/Borahm/modelfusion/core"
)

// GenerationModel returns lorem ipsum in a single response after a pause
// of one word's delay per word.
// It implements core.TextGenerationModel.
type GenerationModel struct {
	base
}

var _ core.TextGenerationModel[string, Response] = (*GenerationModel)(nil)

// WithSettings returns a copy of the model with s merged into its settings.
func (m *GenerationModel) WithSettings(s core.Settings) core.TextGenerationModel[string, Response] {
	return &GenerationModel{base: m.with(s)}
}

// GenerateTextResponse waits for the simulated latency and returns the text.
func (m *GenerationModel) GenerateTextResponse(ctx context.Context, _ string, opts core.CallOptions) (Response, error) {
	resp := generate(opts.Settings)
	if wait := m.delay * time.Duration(resp.Words); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// ExtractText returns the response text.
func (m *GenerationModel) ExtractText(resp Response) (string, error) {
	return resp.Text, nil
}
