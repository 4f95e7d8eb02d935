package calculator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"

	"go-chi-calculator/internal/arith"
	"go-chi-calculator/internal/storage"
)

// maxFactorialOperand is the largest n whose factorial fits in a float64.
const maxFactorialOperand = 170

var errMissingOperand = errors.New("operation is missing an operand")

// operation binds an endpoint name to its request shape and computation.
type operation struct {
	name    string
	shape   shape
	compute func(Operands) (float64, error)
}

var operations = []operation{
	{name: "add", shape: binaryShape, compute: binary(func(a, b float64) (float64, error) {
		return arith.Add(a, b), nil
	})},
	{name: "subtract", shape: binaryShape, compute: binary(func(a, b float64) (float64, error) {
		return arith.Subtract(a, b), nil
	})},
	{name: "multiply", shape: binaryShape, compute: binary(func(a, b float64) (float64, error) {
		return arith.Multiply(a, b), nil
	})},
	{name: "divide", shape: binaryShape, compute: binary(arith.Divide)},
	{name: "modulo", shape: binaryShape, compute: binary(modulo)},
	{name: "power", shape: binaryShape, compute: binary(arith.Power)},
	{name: "sqrt", shape: unaryShape, compute: unary(arith.Sqrt)},
	{name: "factorial", shape: unaryShape, compute: unary(factorial)},
	{name: "percentage", shape: percentageShape, compute: binary(arith.Percentage)},
	{name: "average", shape: listShape, compute: list(arith.Average)},
	{name: "median", shape: listShape, compute: list(arith.Median)},
}

func lookupOperation(name string) (operation, bool) {
	for _, op := range operations {
		if op.name == name {
			return op, true
		}
	}
	return operation{}, false
}

// evaluate runs op on in and rejects results JSON cannot carry.
func evaluate(op operation, in Operands) (float64, error) {
	result, err := op.compute(in)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, arith.InvalidDomain("Numerical result out of range")
	}
	return result, nil
}

// Replay recomputes a stored calculation from its recorded operands.
func Replay(rec *storage.Record) (float64, error) {
	op, ok := lookupOperation(rec.Operation)
	if !ok {
		return 0, fmt.Errorf("unknown operation %q", rec.Operation)
	}

	in := Operands{Operand1: rec.Operand1, Operand2: rec.Operand2}
	if rec.OperandsList != nil {
		numbers, err := decodeNumbers(*rec.OperandsList)
		if err != nil {
			return 0, err
		}
		in.Numbers = numbers
	}

	return evaluate(op, in)
}

func binary(fn func(a, b float64) (float64, error)) func(Operands) (float64, error) {
	return func(in Operands) (float64, error) {
		if in.Operand1 == nil || in.Operand2 == nil {
			return 0, errMissingOperand
		}
		return fn(*in.Operand1, *in.Operand2)
	}
}

func unary(fn func(n float64) (float64, error)) func(Operands) (float64, error) {
	return func(in Operands) (float64, error) {
		if in.Operand1 == nil {
			return 0, errMissingOperand
		}
		return fn(*in.Operand1)
	}
}

func list(fn func([]float64) (float64, error)) func(Operands) (float64, error) {
	return func(in Operands) (float64, error) {
		return fn(in.Numbers)
	}
}

func modulo(a, b float64) (float64, error) {
	ia, err := integralOperand(a)
	if err != nil {
		return 0, err
	}
	ib, err := integralOperand(b)
	if err != nil {
		return 0, err
	}
	r, err := arith.Modulo(ia, ib)
	if err != nil {
		return 0, err
	}
	return float64(r), nil
}

// integralOperand truncates v toward zero, so 10.5 mod 3 is 10 mod 3 and
// 5 mod 0.5 is a modulo by zero.
func integralOperand(v float64) (int64, error) {
	t := math.Trunc(v)
	if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, arith.InvalidDomain("modulo() operand out of range")
	}
	return int64(t), nil
}

func factorial(n float64) (float64, error) {
	if n == math.Trunc(n) && n > maxFactorialOperand {
		return 0, arith.InvalidDomain(fmt.Sprintf("factorial(%g) is too large to represent", n))
	}

	exact, err := arith.Factorial(n)
	if err != nil {
		return 0, err
	}

	result, _ := new(big.Float).SetInt(exact).Float64()
	return result, nil
}

// encodeNumbers renders a list operand as stored in operands_list.
func encodeNumbers(numbers []float64) (string, error) {
	b, err := json.Marshal(numbers)
	if err != nil {
		return "", fmt.Errorf("encoding operands list: %w", err)
	}
	return string(b), nil
}

func decodeNumbers(s string) ([]float64, error) {
	var numbers []float64
	if err := json.Unmarshal([]byte(s), &numbers); err != nil {
		return nil, fmt.Errorf("decoding operands list: %w", err)
	}
	return numbers, nil
}
