package comparison

import (
	"image"
	"time"

	"halftone-compare/internal/timing"
)

type InvocationReport struct {
	Name     string
	Output   string
	Args     []string
	ExitCode int
	Duration time.Duration
}

// Report summarises a successful run.
type Report struct {
	Input       string
	Outputs     []string
	Figure      string
	FigureSize  image.Point
	Invocations []InvocationReport
	Stages      []timing.Stage
	Total       time.Duration
}

func (r *Report) fields() map[string]interface{} {
	stages := make(map[string]int64, len(r.Stages))
	for _, s := range r.Stages {
		stages[s.Operation+"_ms"] = s.Total.Milliseconds()
	}
	return map[string]interface{}{
		"input":       r.Input,
		"figure":      r.Figure,
		"width":       r.FigureSize.X,
		"height":      r.FigureSize.Y,
		"invocations": len(r.Invocations),
		"stages":      stages,
		"total_ms":    r.Total.Milliseconds(),
	}
}
