package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// Op selects the processing mode of the image tool.
type Op int

const (
	OpDither         Op = 1
	OpErrorDiffusion Op = 2
)

func (o Op) String() string {
	switch o {
	case OpDither:
		return "ordered-dither"
	case OpErrorDiffusion:
		return "error-diffusion"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Kernel is the error-diffusion kernel selector understood by --kernel.
type Kernel uint

const (
	FloydSteinberg    Kernel = 1
	JarvisJudiceNinke Kernel = 2
	Stucki            Kernel = 3
)

func (k Kernel) String() string {
	switch k {
	case FloydSteinberg:
		return "FLOYD_STEINBERG"
	case JarvisJudiceNinke:
		return "JARVIS_JUDICE_NINKE"
	case Stucki:
		return "STUCKI"
	default:
		return fmt.Sprintf("kernel(%d)", uint(k))
	}
}

func (k Kernel) Valid() bool {
	return k >= FloydSteinberg && k <= Stucki
}

// Params holds the per-mode flags. Size only applies to OpDither; Kernel,
// Threshold and MBVQ only to OpErrorDiffusion.
type Params struct {
	Size      uint   `yaml:"size,omitempty"`
	Kernel    Kernel `yaml:"kernel,omitempty"`
	Threshold uint   `yaml:"threshold,omitempty"`
	MBVQ      bool   `yaml:"mbvq,omitempty"`
	BW        bool   `yaml:"bw,omitempty"`
}

// Invocation is one call of the image tool.
type Invocation struct {
	Name   string
	Input  string
	Output string
	Op     Op
	Params Params
}

// Args renders the invocation as --flag=value arguments in a stable order.
func (inv Invocation) Args() []string {
	args := []string{
		"--input=" + inv.Input,
		"--output=" + inv.Output,
		"--op=" + strconv.Itoa(int(inv.Op)),
	}

	p := inv.Params
	switch inv.Op {
	case OpDither:
		args = append(args, "--size="+strconv.FormatUint(uint64(p.Size), 10))
	case OpErrorDiffusion:
		args = append(args,
			"--kernel="+strconv.FormatUint(uint64(p.Kernel), 10),
			"--threshold="+strconv.FormatUint(uint64(p.Threshold), 10),
			"--mbvq="+boolFlag(p.MBVQ),
		)
	}

	if p.BW {
		args = append(args, "--bw=1")
	}
	return args
}

// CommandLine formats the invocation for display, quoting arguments with spaces.
func (inv Invocation) CommandLine(path string) string {
	parts := make([]string, 0, 8)
	parts = append(parts, quote(path))
	for _, a := range inv.Args() {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t\"'") {
		return strconv.Quote(s)
	}
	return s
}
