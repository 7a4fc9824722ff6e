package comparison

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halftone-compare/internal/config"
	"halftone-compare/internal/figure"
	"halftone-compare/internal/tool"
)

const variantSize = 24

type fakeTool struct {
	mu     sync.Mutex
	calls  []tool.Invocation
	failOn string
	skip   string
	hook   func(tool.Invocation)
}

func (f *fakeTool) Run(ctx context.Context, inv tool.Invocation) (*tool.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()

	if f.hook != nil {
		f.hook(inv)
	}

	res := &tool.Result{Args: inv.Args(), Duration: time.Millisecond}
	switch inv.Name {
	case f.failOn:
		res.ExitCode = 1
		res.Stderr = "Invalid value for argument size"
		return res, &tool.Error{Name: inv.Name, Path: "image_print", Args: res.Args, ExitCode: 1, Stderr: res.Stderr, Err: errors.New("exit status 1")}
	case f.skip:
		return res, nil
	}

	img := image.NewGray(image.Rect(0, 0, variantSize, variantSize))
	for i := range img.Pix {
		img.Pix[i] = uint8(len(inv.Name) * 20)
	}
	if err := figure.Save(inv.Output, img, 90); err != nil {
		return res, err
	}
	return res, nil
}

func (f *fakeTool) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.Name
	}
	return names
}

type recordingRenderer struct {
	paths  []string
	output string
	calls  int
}

func (r *recordingRenderer) Render(_ context.Context, paths []string, output string) (image.Point, error) {
	r.calls++
	r.paths = append([]string(nil), paths...)
	r.output = output
	return image.Pt(1, 1), nil
}

// testConfig lays out dir/sample/parrot.jpg and dir/assests/demo_image.jpg.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.BaseDir = filepath.Join(dir, "sample")
	cfg.OutputPath = filepath.Join(dir, "assests", "demo_image.jpg")
	cfg.Renderer = config.RendererGo

	original := image.NewRGBA(image.Rect(0, 0, 32, variantSize))
	for i := range original.Pix {
		original.Pix[i] = uint8(i)
	}
	require.NoError(t, figure.Save(filepath.Join(cfg.BaseDir, "parrot.jpg"), original, 90))
	return cfg
}

func goRenderer() *figure.GoRenderer {
	return figure.NewGoRenderer(figure.DefaultOptions(), nil)
}

func TestPlanPaths(t *testing.T) {
	plan, err := NewPlan(config.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join("sample", "parrot.jpg"),
		filepath.Join("sample", "parrot_dith.jpg"),
		filepath.Join("sample", "parrot_error.jpg"),
		filepath.Join("sample", "parrot_mbvq.jpg"),
		filepath.Join("sample", "parrot_dith_bw.jpg"),
		filepath.Join("sample", "parrot_mbvq_bw.jpg"),
	}, plan.Paths())
	assert.Equal(t, "assests/demo_image.jpg", plan.Figure)
}

func TestPlanRejectsFigureCollision(t *testing.T) {
	cfg := config.Default()
	cfg.OutputPath = filepath.Join("sample", "parrot_mbvq.jpg")
	_, err := NewPlan(cfg)
	assert.Error(t, err)
}

func TestRunProducesSixImagesAndFigure(t *testing.T) {
	cfg := testConfig(t)
	ft := &fakeTool{}
	r, err := NewRunner(cfg, ft, goRenderer(), nil)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	plan, err := r.Plan()
	require.NoError(t, err)
	for _, p := range plan.Paths() {
		_, _, err := figure.Load(p)
		assert.NoError(t, err, p)
	}
	entries, err := os.ReadDir(cfg.BaseDir)
	require.NoError(t, err)
	assert.Len(t, entries, 6)

	fig, format, err := figure.Load(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, report.FigureSize, fig.Bounds().Size())

	labelHeight := goRenderer().LabelHeight()
	assert.Equal(t, image.Pt(32+variantSize+variantSize, 2*(variantSize+labelHeight)), report.FigureSize)

	require.Len(t, report.Invocations, 5)
	assert.Equal(t, "_dith", report.Invocations[0].Name)
	assert.Equal(t, []string{"prepare", "invoke", "render"}, stageNames(report))
}

func stageNames(r *Report) []string {
	var names []string
	for _, s := range r.Stages {
		names = append(names, s.Operation)
	}
	return names
}

func TestRunPassesDocumentedFlags(t *testing.T) {
	cfg := testConfig(t)
	ft := &fakeTool{}
	r, err := NewRunner(cfg, ft, &recordingRenderer{}, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	input := filepath.Join(cfg.BaseDir, "parrot.jpg")
	out := func(suffix string) string { return filepath.Join(cfg.BaseDir, "parrot"+suffix+".jpg") }
	want := [][]string{
		{"--input=" + input, "--output=" + out("_dith"), "--op=1", "--size=16"},
		{"--input=" + input, "--output=" + out("_error"), "--op=2", "--kernel=3", "--threshold=127", "--mbvq=0"},
		{"--input=" + input, "--output=" + out("_mbvq"), "--op=2", "--kernel=3", "--threshold=127", "--mbvq=1"},
		{"--input=" + input, "--output=" + out("_dith_bw"), "--op=1", "--size=16", "--bw=1"},
		{"--input=" + input, "--output=" + out("_mbvq_bw"), "--op=2", "--kernel=3", "--threshold=127", "--mbvq=0", "--bw=1"},
	}

	require.Len(t, ft.calls, 5)
	outputs := make(map[string]bool)
	for i, inv := range ft.calls {
		assert.Equal(t, want[i], inv.Args())
		assert.Equal(t, input, inv.Input)
		assert.False(t, outputs[inv.Output], "duplicate output %s", inv.Output)
		outputs[inv.Output] = true
	}
}

func TestRunRendersInGridOrder(t *testing.T) {
	cfg := testConfig(t)
	rr := &recordingRenderer{}
	r, err := NewRunner(cfg, &fakeTool{}, rr, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rr.paths, 6)
	for i, suffix := range []string{"", "_dith", "_error", "_mbvq", "_dith_bw", "_mbvq_bw"} {
		assert.Equal(t, filepath.Join(cfg.BaseDir, "parrot"+suffix+".jpg"), rr.paths[i])
	}
	assert.Equal(t, cfg.OutputPath, rr.output)
}

func TestRunStopsOnToolFailure(t *testing.T) {
	cfg := testConfig(t)
	rr := &recordingRenderer{}
	ft := &fakeTool{failOn: "_mbvq"}
	r, err := NewRunner(cfg, ft, rr, nil)
	require.NoError(t, err)

	for attempt := 0; attempt < 2; attempt++ {
		ft.calls = nil
		_, err = r.Run(context.Background())

		var toolErr *tool.Error
		require.ErrorAs(t, err, &toolErr, "attempt %d", attempt)
		assert.Equal(t, "_mbvq", toolErr.Name)
		assert.Equal(t, 1, toolErr.ExitCode)
		assert.Equal(t, []string{"_dith", "_error", "_mbvq"}, ft.names())
	}
	assert.Zero(t, rr.calls)

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunFailsWhenOutputMissing(t *testing.T) {
	cfg := testConfig(t)
	rr := &recordingRenderer{}
	r, err := NewRunner(cfg, &fakeTool{skip: "_dith_bw"}, rr, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	var missing *MissingOutputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "_dith_bw", missing.Name)
	assert.Equal(t, filepath.Join(cfg.BaseDir, "parrot_dith_bw.jpg"), missing.Path)
	assert.Zero(t, rr.calls)
}

func TestRunRemovesStaleOutputs(t *testing.T) {
	cfg := testConfig(t)
	stale := filepath.Join(cfg.BaseDir, "parrot_dith_bw.jpg")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	r, err := NewRunner(cfg, &fakeTool{skip: "_dith_bw"}, &recordingRenderer{}, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())

	var missing *MissingOutputError
	require.ErrorAs(t, err, &missing)
	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunKeepsStaleOutputsWhenAsked(t *testing.T) {
	cfg := testConfig(t)
	cfg.CleanStale = false
	stale := filepath.Join(cfg.BaseDir, "parrot_dith_bw.jpg")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	rr := &recordingRenderer{}
	r, err := NewRunner(cfg, &fakeTool{skip: "_dith_bw"}, rr, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rr.calls)
}

func TestRunMissingInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImageName = "lena"
	ft := &fakeTool{}
	r, err := NewRunner(cfg, ft, &recordingRenderer{}, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Empty(t, ft.calls)
}

func TestRunCreatesOutputDirectories(t *testing.T) {
	cfg := testConfig(t)
	cfg.OutputPath = filepath.Join(filepath.Dir(cfg.OutputPath), "deeper", "still", "demo_image.png")

	r, err := NewRunner(cfg, &fakeTool{}, goRenderer(), nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	_, format, err := figure.Load(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestRunParallelWaitsForAllVariants(t *testing.T) {
	cfg := testConfig(t)
	cfg.Parallel = true

	var (
		mu      sync.Mutex
		arrived int
		release = make(chan struct{})
	)
	ft := &fakeTool{hook: func(tool.Invocation) {
		mu.Lock()
		arrived++
		if arrived == 5 {
			close(release)
		}
		mu.Unlock()
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}}

	rr := &recordingRenderer{}
	r, err := NewRunner(cfg, ft, rr, nil)
	require.NoError(t, err)

	start := time.Now()
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "invocations did not overlap")

	assert.ElementsMatch(t, []string{"_dith", "_error", "_mbvq", "_dith_bw", "_mbvq_bw"}, ft.names())
	for i, inv := range report.Invocations {
		assert.Equal(t, cfg.Variants[i].Suffix, inv.Name)
	}
	assert.Equal(t, 1, rr.calls)
}

func TestRunParallelReportsFirstFailureInOrder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Parallel = true

	rr := &recordingRenderer{}
	r, err := NewRunner(cfg, &fakeTool{failOn: "_error"}, rr, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	var toolErr *tool.Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "_error", toolErr.Name)
	assert.Zero(t, rr.calls)
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ft := &fakeTool{}
	r, err := NewRunner(cfg, ft, &recordingRenderer{}, nil)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ft.calls)
}

func TestNewRunnerValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Variants = cfg.Variants[:3]
	_, err := NewRunner(cfg, &fakeTool{}, &recordingRenderer{}, nil)
	var ve *config.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRunWithExecutableTool(t *testing.T) {
	cfg := testConfig(t)
	runner := tool.NewExecRunner(os.Args[0], nil, tool.WithEnv("FAKE_IMAGE_TOOL=copy"))

	r, err := NewRunner(cfg, runner, goRenderer(), nil)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	for _, inv := range report.Invocations {
		assert.Equal(t, 0, inv.ExitCode)
	}
	first, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)

	// identical inputs give an identical figure
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fig, _, err := figure.Load(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(3*32, 2*(variantSize+goRenderer().LabelHeight())), fig.Bounds().Size())
	assert.NotEqual(t, color.RGBA{}, color.RGBAModel.Convert(fig.At(1, 1)))
}
