// Package arith holds the calculator's arithmetic and statistics operations.
// Every function is pure and safe for concurrent use.
package arith

import (
	"math"
	"math/big"
	"slices"
)

func Add(a, b float64) float64 { return a + b }

func Subtract(a, b float64) float64 { return a - b }

func Multiply(a, b float64) float64 { return a * b }

// Divide returns a / b.
func Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, divisionByZero("Cannot divide by zero")
	}
	return a / b, nil
}

// Modulo returns a mod b using floored division: a non-zero result always
// takes the sign of b, so Modulo(-7, 3) == 2 and Modulo(7, -3) == -2.
func Modulo(a, b int64) (int64, error) {
	if b == 0 {
		return 0, divisionByZero("Cannot modulo by zero")
	}
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r, nil
}

// Power returns base raised to exponent with math.Pow semantics. Results that
// are not real finite numbers are reported instead of returned.
func Power(base, exponent float64) (float64, error) {
	if base == 0 && exponent < 0 {
		return 0, divisionByZero("0.0 cannot be raised to a negative power")
	}
	r := math.Pow(base, exponent)
	switch {
	case math.IsNaN(r):
		return 0, invalidDomain("Power of a negative base with a fractional exponent is not a real number")
	case math.IsInf(r, 0):
		return 0, invalidDomain("Numerical result out of range")
	}
	return r, nil
}

// Sqrt returns the non-negative square root of n.
func Sqrt(n float64) (float64, error) {
	if n < 0 {
		return 0, invalidDomain("Cannot take square root of a negative number")
	}
	return math.Sqrt(n), nil
}

// Factorial returns n! exactly. n must hold a non-negative integer value.
func Factorial(n float64) (*big.Int, error) {
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return nil, invalidDomain("factorial() only accepts integers")
	}
	if n < 0 {
		return nil, invalidDomain("factorial() not defined for negative values")
	}
	if n > math.MaxInt32 {
		return nil, invalidDomain("factorial() argument should not exceed 2147483647")
	}

	result := big.NewInt(1)
	for i := int64(2); i <= int64(n); i++ {
		result.Mul(result, big.NewInt(i))
	}
	return result, nil
}

// Percentage returns part as a percentage of whole.
func Percentage(part, whole float64) (float64, error) {
	if whole == 0 {
		return 0, divisionByZero("Cannot compute percentage with a zero whole")
	}
	return part / whole * 100.0, nil
}

// Average returns the arithmetic mean of numbers.
func Average(numbers []float64) (float64, error) {
	if len(numbers) == 0 {
		return 0, invalidDomain("Cannot calculate average of empty list")
	}
	count := float64(len(numbers))
	var sum float64
	for _, n := range numbers {
		sum += n
	}
	if !math.IsInf(sum, 0) {
		return sum / count, nil
	}

	// The sum overflowed though every input is finite; scale before adding.
	var mean float64
	for _, n := range numbers {
		mean += n / count
	}
	return mean, nil
}

// Median returns the middle value of numbers, or the mean of the two middle
// values when the count is even. The input slice is not reordered.
func Median(numbers []float64) (float64, error) {
	if len(numbers) == 0 {
		return 0, invalidDomain("Cannot calculate median of empty list")
	}
	sorted := slices.Clone(numbers)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return sorted[mid-1]/2 + sorted[mid]/2, nil
}
