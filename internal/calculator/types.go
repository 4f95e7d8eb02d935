package calculator

import (
	"time"

	"go-chi-calculator/internal/storage"
)

// BinaryRequest is the JSON body for add, subtract, multiply, divide, modulo
// and power. Operation is accepted for compatibility and ignored.
type BinaryRequest struct {
	Operation string  `json:"operation,omitempty"`
	Operand1  float64 `json:"operand1"`
	Operand2  float64 `json:"operand2"`
}

// UnaryRequest is the JSON body for sqrt and factorial.
type UnaryRequest struct {
	Operation string  `json:"operation,omitempty"`
	Operand   float64 `json:"operand"`
}

// PercentageRequest is the JSON body for POST /calculator/percentage.
type PercentageRequest struct {
	Operation string  `json:"operation,omitempty"`
	Part      float64 `json:"part"`
	Whole     float64 `json:"whole"`
}

// ListRequest is the JSON body for average and median.
type ListRequest struct {
	Operation string    `json:"operation,omitempty"`
	Numbers   []float64 `json:"numbers"`
}

// Operands is the request-shape independent view of an operation's inputs,
// laid out the way a calculation record stores them. Percentage keeps part in
// Operand1 and whole in Operand2; unary operations use Operand1 only.
type Operands struct {
	Operand1 *float64
	Operand2 *float64
	Numbers  []float64
}

// CalculationResponse is returned by every calculation and history
// endpoint. ID and CreatedAt are absent when nothing was persisted.
type CalculationResponse struct {
	ID           uint       `json:"id,omitempty"`
	Operation    string     `json:"operation"`
	Operand1     *float64   `json:"operand1,omitempty"`
	Operand2     *float64   `json:"operand2,omitempty"`
	OperandsList *string    `json:"operands_list,omitempty"`
	Result       float64    `json:"result"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

func newCalculationResponse(rec *storage.Record) CalculationResponse {
	resp := CalculationResponse{
		ID:           rec.ID,
		Operation:    rec.Operation,
		Operand1:     rec.Operand1,
		Operand2:     rec.Operand2,
		OperandsList: rec.OperandsList,
		Result:       rec.Result,
	}
	if !rec.CreatedAt.IsZero() {
		createdAt := rec.CreatedAt
		resp.CreatedAt = &createdAt
	}
	return resp
}
