package faces

import "fmt"

// StrategyOptions holds the settings for every FaceEmbedder implementation; only the
// fields for the selected strategy are read.
type StrategyOptions struct {
	Service     ServiceEmbedderOptions
	CascadePath string
}

// NewStrategy returns the FaceEmbedder registered under name ("service" or "opencv").
func NewStrategy(name string, opts StrategyOptions) (FaceEmbedder, error) {
	switch name {
	case "service":
		return NewServiceEmbedder(opts.Service), nil
	case "opencv":
		embedder, err := NewOpenCVEmbedder(opts.CascadePath)
		if err != nil {
			return nil, err
		}

		return embedder, nil
	default:
		return nil, fmt.Errorf("unknown face strategy %q", name)
	}
}
