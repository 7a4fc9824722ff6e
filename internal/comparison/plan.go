package comparison

import (
	"fmt"
	"path/filepath"

	"halftone-compare/internal/config"
	"halftone-compare/internal/tool"
)

// Step pairs a variant with the file it must produce.
type Step struct {
	Variant config.Variant
	Output  string
}

// Plan is the deterministic set of paths for one run.
type Plan struct {
	Input  string
	Figure string
	Steps  []Step
}

// NewPlan derives {base}/{name}{ext} and {base}/{name}{suffix}{ext} for
// every variant. All paths must be distinct.
func NewPlan(cfg config.Config) (*Plan, error) {
	p := &Plan{
		Input:  filepath.Join(cfg.BaseDir, cfg.ImageName+cfg.InputExt),
		Figure: cfg.OutputPath,
		Steps:  make([]Step, 0, len(cfg.Variants)),
	}

	seen := map[string]string{filepath.Clean(p.Input): "original"}
	for _, v := range cfg.Variants {
		out := filepath.Join(cfg.BaseDir, cfg.ImageName+v.Suffix+cfg.InputExt)
		key := filepath.Clean(out)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("variant %q writes %s, already used by %s", v.Suffix, out, prev)
		}
		seen[key] = fmt.Sprintf("variant %q", v.Suffix)
		p.Steps = append(p.Steps, Step{Variant: v, Output: out})
	}

	if prev, dup := seen[filepath.Clean(p.Figure)]; dup {
		return nil, fmt.Errorf("figure path %s collides with %s", p.Figure, prev)
	}
	return p, nil
}

// Paths lists the original followed by every output, in grid order.
func (p *Plan) Paths() []string {
	paths := make([]string, 0, len(p.Steps)+1)
	paths = append(paths, p.Input)
	for _, s := range p.Steps {
		paths = append(paths, s.Output)
	}
	return paths
}

func (p *Plan) Invocations() []tool.Invocation {
	invs := make([]tool.Invocation, len(p.Steps))
	for i, s := range p.Steps {
		invs[i] = tool.Invocation{
			Name:   s.Variant.Suffix,
			Input:  p.Input,
			Output: s.Output,
			Op:     s.Variant.Op,
			Params: s.Variant.Params,
		}
	}
	return invs
}
