package timing

import (
	"fmt"
	"math"
	"strings"
)

// #region compute
// Bin i counts intervals in (2i, 2i+2] msec and is labelled by its upper edge,
// 2..26 msec. Longer intervals fold into the last bin.
const (
	histogramBins  = 13
	binWidthMsec   = 2.0
	histogramLines = 10
)

// Compute summarizes frame timestamps given in seconds. Fewer than two timestamps
// yield a Stats with only Frames set.
func Compute(timestamps []float64) Stats {
	st := Stats{
		Frames:       len(timestamps),
		Histogram:    make([]int, histogramBins),
		BinWidthMsec: binWidthMsec,
	}
	if len(timestamps) < 2 {
		return st
	}

	intervals := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		intervals = append(intervals, timestamps[i]-timestamps[i-1])
	}

	st.MinInterval = math.Inf(1)
	var sum float64
	for _, d := range intervals {
		sum += d
		st.MaxInterval = math.Max(st.MaxInterval, d)
		st.MinInterval = math.Min(st.MinInterval, d)

		bin := int(math.Ceil(d*1000/binWidthMsec)) - 1
		if bin < 0 {
			bin = 0
		}
		if bin >= histogramBins {
			bin = histogramBins - 1
			st.OverflowCount++
		}
		st.Histogram[bin]++
	}
	st.MeanInterval = sum / float64(len(intervals))
	if st.MeanInterval > 0 {
		st.MeanFPS = 1 / st.MeanInterval
	}

	// instantaneous rate spread and interval jitter
	var fpsVar float64
	var fpsCount int
	for _, d := range intervals {
		if d <= 0 {
			continue
		}
		diff := 1/d - st.MeanFPS
		fpsVar += diff * diff
		fpsCount++
	}
	if fpsCount > 0 {
		st.FPSStdDev = math.Sqrt(fpsVar / float64(fpsCount))
	}
	for _, d := range intervals {
		j := math.Abs(d - st.MeanInterval)
		st.JitterMean += j
		st.JitterMax = math.Max(st.JitterMax, j)
	}
	st.JitterMean /= float64(len(intervals))
	return st
}

// #endregion compute

// #region format
// Format renders the statistics and a star histogram of inter-frame intervals.
func (s Stats) Format() string {
	var b strings.Builder
	if s.Frames < 2 {
		fmt.Fprintf(&b, "%d frames timed, not enough for statistics\n", s.Frames)
		return b.String()
	}
	fmt.Fprintf(&b, "%d frames drawn\n", s.Frames)
	fmt.Fprintf(&b, "mean frame was %.2f msec (%.2f fps), longest frame was %.2f msec\n",
		s.MeanInterval*1000, s.MeanFPS, s.MaxInterval*1000)
	fmt.Fprintf(&b, "jitter mean %.3f msec, max %.3f msec\n", s.JitterMean*1000, s.JitterMax*1000)

	maxCount := 0
	for _, n := range s.Histogram {
		if n > maxCount {
			maxCount = n
		}
	}
	if maxCount == 0 {
		return b.String()
	}
	b.WriteString("histogram of inter-frame intervals:\n")
	for line := histogramLines; line >= 1; line-- {
		threshold := float64(maxCount) * float64(line) / histogramLines
		fmt.Fprintf(&b, "%6d ", int(math.Ceil(threshold)))
		for _, n := range s.Histogram {
			if float64(n) >= threshold {
				b.WriteString("  *")
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("msec:  ")
	for i := range s.Histogram {
		fmt.Fprintf(&b, "%3.0f", float64(i+1)*s.BinWidthMsec)
	}
	b.WriteByte('\n')
	if s.OverflowCount > 0 {
		fmt.Fprintf(&b, "last bin includes %d interval(s) longer than %.0f msec\n",
			s.OverflowCount, float64(len(s.Histogram))*s.BinWidthMsec)
	}
	return b.String()
}

// #endregion format
