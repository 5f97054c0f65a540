package modules

import (
	"math"

	"github.com/yaraeng/yarago/vm"
)

// Math implements the "math" module: statistical functions over a byte
// range of the scanned buffer, grounded on r-yara-modules/src/math.rs
// (entropy/mean/deviation/serial_correlation/monte_carlo_pi/count/
// percentage/mode/in_range/min/max/abs/to_number/to_string). Pure
// arithmetic over []byte, so no third-party library applies here beyond
// the standard math package — the same way the Rust original needed no
// external crate for this module either.
type Math struct {
	Buffer []byte
}

func (m Math) slice(offset, size int64) []byte {
	if offset < 0 || size < 0 || offset > int64(len(m.Buffer)) {
		return nil
	}
	end := offset + size
	if end > int64(len(m.Buffer)) {
		end = int64(len(m.Buffer))
	}
	return m.Buffer[offset:end]
}

// Entropy returns the Shannon entropy, in bits per byte, of the range.
func (m Math) Entropy(offset, size int64) float64 {
	s := m.slice(offset, size)
	if len(s) == 0 {
		return 0
	}
	var counts [256]int64
	for _, b := range s {
		counts[b]++
	}
	n := float64(len(s))
	var ent float64
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / n
			ent -= p * math.Log2(p)
		}
	}
	return ent
}

// Mean returns the arithmetic mean of byte values in the range.
func (m Math) Mean(offset, size int64) float64 {
	s := m.slice(offset, size)
	if len(s) == 0 {
		return 0
	}
	var sum int64
	for _, b := range s {
		sum += int64(b)
	}
	return float64(sum) / float64(len(s))
}

// Deviation returns the standard deviation of byte values from
// expectedMean.
func (m Math) Deviation(offset, size int64, expectedMean float64) float64 {
	s := m.slice(offset, size)
	if len(s) == 0 {
		return 0
	}
	var variance float64
	for _, b := range s {
		diff := float64(b) - expectedMean
		variance += diff * diff
	}
	variance /= float64(len(s))
	return math.Sqrt(variance)
}

// SerialCorrelation measures how correlated each byte is with the
// previous one; near 0 for random data, near ±1 for highly patterned
// data.
func (m Math) SerialCorrelation(offset, size int64) float64 {
	s := m.slice(offset, size)
	if len(s) < 2 {
		return 0
	}
	meanVal := m.Mean(offset, size)
	var sumXY, sumX2, sumY2 float64
	for i := 0; i < len(s)-1; i++ {
		x := float64(s[i]) - meanVal
		y := float64(s[i+1]) - meanVal
		sumXY += x * y
		sumX2 += x * x
		sumY2 += y * y
	}
	denom := math.Sqrt(sumX2 * sumY2)
	if denom == 0 {
		return 0
	}
	return sumXY / denom
}

// MonteCarloPi estimates pi by treating consecutive byte pairs as (x,y)
// coordinates in the unit square and counting how many land inside the
// unit circle's quarter — a statistical randomness test.
func (m Math) MonteCarloPi(offset, size int64) float64 {
	s := m.slice(offset, size)
	if len(s) < 2 {
		return 0
	}
	pairs := len(s) / 2
	var inside int64
	for i := 0; i < pairs; i++ {
		x := float64(s[i*2]) / 256.0
		y := float64(s[i*2+1]) / 256.0
		if x*x+y*y <= 1.0 {
			inside++
		}
	}
	return 4.0 * float64(inside) / float64(pairs)
}

// Count returns the number of occurrences of byteVal in the range.
func (m Math) Count(byteVal byte, offset, size int64) int64 {
	s := m.slice(offset, size)
	var n int64
	for _, b := range s {
		if b == byteVal {
			n++
		}
	}
	return n
}

// Percentage returns what fraction, 0-100, of the range is byteVal.
func (m Math) Percentage(byteVal byte, offset, size int64) float64 {
	s := m.slice(offset, size)
	if len(s) == 0 {
		return 0
	}
	return 100.0 * float64(m.Count(byteVal, offset, size)) / float64(len(s))
}

// Mode returns the most frequently occurring byte value in the range.
func (m Math) Mode(offset, size int64) byte {
	s := m.slice(offset, size)
	if len(s) == 0 {
		return 0
	}
	var counts [256]int64
	for _, b := range s {
		counts[b]++
	}
	var maxCount int64
	var maxByte byte
	for b, c := range counts {
		if c > maxCount {
			maxCount = c
			maxByte = byte(b)
		}
	}
	return maxByte
}

// InRange reports whether lower <= test <= upper.
func (m Math) InRange(test, lower, upper float64) bool {
	return test >= lower && test <= upper
}

// Min returns the lesser of a, b.
func (m Math) Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Max returns the greater of a, b.
func (m Math) Max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Abs returns the absolute value of a.
func (m Math) Abs(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

// ToNumber converts a boolean condition result to 0/1.
func (m Math) ToNumber(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Call dispatches a qualified "math.*" function call.
func (m Math) Call(name string, args []vm.Value) (vm.Value, bool) {
	i := func(n int) int64 { return args[n].AsInt() }
	f := func(n int) float64 { return args[n].AsFloat() }
	switch name {
	case "entropy":
		return vm.FloatVal(m.Entropy(i(0), i(1))), true
	case "mean":
		return vm.FloatVal(m.Mean(i(0), i(1))), true
	case "deviation":
		return vm.FloatVal(m.Deviation(i(0), i(1), f(2))), true
	case "serial_correlation":
		return vm.FloatVal(m.SerialCorrelation(i(0), i(1))), true
	case "monte_carlo_pi":
		return vm.FloatVal(m.MonteCarloPi(i(0), i(1))), true
	case "count":
		return vm.IntVal(m.Count(byte(i(0)), i(1), i(2))), true
	case "percentage":
		return vm.FloatVal(m.Percentage(byte(i(0)), i(1), i(2))), true
	case "mode":
		return vm.IntVal(int64(m.Mode(i(0), i(1)))), true
	case "in_range":
		return vm.BoolVal(m.InRange(f(0), f(1), f(2))), true
	case "min":
		return vm.IntVal(m.Min(i(0), i(1))), true
	case "max":
		return vm.IntVal(m.Max(i(0), i(1))), true
	case "abs":
		return vm.IntVal(m.Abs(i(0))), true
	}
	return vm.Undefined(), false
}
