package stimulus

import (
	"context"
	"math"
	"testing"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/presentation"
	"github.com/visionegg/visionegg-sub000/internal/remote"
)

type nullScreen struct{}

func (nullScreen) Clear() {}

type lumViewport struct {
	g    *param.Container
	clk  presentation.Clock
	lums []float64
}

func (v *lumViewport) Screen() presentation.Screen { return nullScreen{} }
func (v *lumViewport) Draw() { v.lums = append(v.lums, Luminance(v.g, v.clk.Now())) }

func TestExposeSkipsConstants(t *testing.T) {
	g, err := NewGrating(nil)
	if err != nil {
		t.Fatalf("NewGrating: %v", err)
	}
	p, err := presentation.New(presentation.Options{Clock: presentation.NewFixedRateClock(60, 0)})
	if err != nil {
		t.Fatal(err)
	}
	reg := remote.NewRegistry()
	names, err := Expose(reg, p, g)
	if err != nil {
		t.Fatalf("Expose: %v", err)
	}
	if len(names) != 9 {
		t.Fatalf("exposed %v", names)
	}
	if _, ok := reg.Lookup("num_samples"); ok {
		t.Fatal("constant must not be exposed")
	}
	// exposed constants count time, not frames
	if p.FrameControllerCount() != 0 {
		t.Fatalf("frame controllers = %d, want 0", p.FrameControllerCount())
	}
	// the count is fixed at bind time and survives a swap to a frame-based delegate
	if err := reg.Submit("contrast", `eval_str("f * 0.1", "0.0", float, FRAMES_SINCE_GO, EVERY_FRAME)`, "test"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	proxy, _ := reg.Lookup("contrast")
	proxy.Poll()
	if proxy.Swaps() != 1 || proxy.TemporalKind() != controller.FramesSinceGo {
		t.Fatalf("swaps = %d, temporal = %s", proxy.Swaps(), proxy.TemporalKind())
	}
	if p.FrameControllerCount() != 0 {
		t.Fatalf("frame controllers after swap = %d, want 0", p.FrameControllerCount())
	}
	if err := reg.Submit("on", "const(1.0, 0.0, float, TIME_SEC_SINCE_GO, EVERY_FRAME)", "test"); err == nil {
		t.Fatal("float controller accepted for bool field")
	}
}

func TestRemoteContrastChange(t *testing.T) {
	g, err := NewGrating(map[string]param.Value{"temporal_freq_hz": param.Float(15)})
	if err != nil {
		t.Fatal(err)
	}
	clk := presentation.NewFixedRateClock(60, 0)
	vp := &lumViewport{g: g, clk: clk}
	p, err := presentation.New(presentation.Options{Viewports: []presentation.Viewport{vp}, Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	reg := remote.NewRegistry()
	if _, err := Expose(reg, p, g); err != nil {
		t.Fatal(err)
	}
	if err := reg.Submit("contrast", "const(0.0, 0.0, float, TIME_SEC_SINCE_GO, EVERY_FRAME)", "test"); err != nil {
		t.Fatal(err)
	}
	_ = p.SetDuration(presentation.Frames(3))
	if _, err := p.RunOffline(context.Background(), 60, nil); err != nil {
		t.Fatal(err)
	}
	for i, l := range vp.lums {
		if math.Abs(l-0.5) > 1e-12 {
			t.Fatalf("frame %d luminance = %v, want pedestal", i, l)
		}
	}
}

func TestLuminance(t *testing.T) {
	g, _ := NewGrating(map[string]param.Value{"phase_at_t0": param.Float(90)})
	if got := Luminance(g, 0); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("luminance = %v, want 1.0", got)
	}
	_ = g.Set("on", param.Bool(false))
	if got := Luminance(g, 0); got != 0.5 {
		t.Fatalf("off luminance = %v", got)
	}
}
