package calculator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError reports a structurally invalid request: malformed JSON,
// missing fields or wrong types. It is distinct from domain failures.
type ValidationError struct {
	Problems []string
	Err      error
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalidRequest(err error, problems ...string) *ValidationError {
	return &ValidationError{Problems: problems, Err: err}
}

const (
	binarySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "operation": {"type": "string"},
    "operand1": {"type": "number"},
    "operand2": {"type": "number"}
  },
  "required": ["operand1", "operand2"]
}`

	unarySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "operation": {"type": "string"},
    "operand": {"type": "number"}
  },
  "required": ["operand"]
}`

	percentageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "operation": {"type": "string"},
    "part": {"type": "number"},
    "whole": {"type": "number"}
  },
  "required": ["part", "whole"]
}`

	listSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "operation": {"type": "string"},
    "numbers": {
      "type": "array",
      "items": {"type": "number"},
      "maxItems": 100000
    }
  },
  "required": ["numbers"]
}`
)

// shape couples a request body schema with the decoder producing Operands.
type shape struct {
	name   string
	schema *gojsonschema.Schema
	decode func(body []byte) (Operands, error)
}

var (
	binaryShape     = newShape("binary", binarySchema, decodeBinary)
	unaryShape      = newShape("unary", unarySchema, decodeUnary)
	percentageShape = newShape("percentage", percentageSchema, decodePercentage)
	listShape       = newShape("list", listSchema, decodeList)
)

func newShape(name, schema string, decode func([]byte) (Operands, error)) shape {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("compiling %s request schema: %v", name, err))
	}
	return shape{name: name, schema: compiled, decode: decode}
}

// parse validates body against the shape's schema and decodes it.
func (s shape) parse(body []byte) (Operands, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Operands{}, invalidRequest(nil, "request body is required")
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return Operands{}, invalidRequest(err, "request body is not valid JSON")
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return Operands{}, invalidRequest(nil, problems...)
	}

	in, err := s.decode(body)
	if err != nil {
		return Operands{}, invalidRequest(err, err.Error())
	}
	return in, nil
}

func decodeBinary(body []byte) (Operands, error) {
	var req BinaryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return Operands{}, err
	}
	return Operands{Operand1: &req.Operand1, Operand2: &req.Operand2}, nil
}

func decodeUnary(body []byte) (Operands, error) {
	var req UnaryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return Operands{}, err
	}
	return Operands{Operand1: &req.Operand}, nil
}

func decodePercentage(body []byte) (Operands, error) {
	var req PercentageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return Operands{}, err
	}
	return Operands{Operand1: &req.Part, Operand2: &req.Whole}, nil
}

func decodeList(body []byte) (Operands, error) {
	var req ListRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return Operands{}, err
	}
	if req.Numbers == nil {
		req.Numbers = []float64{}
	}
	return Operands{Numbers: req.Numbers}, nil
}
