package querycompiler

import (
	"fmt"
	"slices"

	"github.com/hyperledger-archives/composer-sub008/internal/mango"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
)

// Generator serializes a compiled query for one set of parameter values.
type Generator func(params map[string]any) (string, error)

// CompiledQuery is a query ready for execution.
type CompiledQuery struct {
	Name       string
	Text       string // Select statement source
	Hash       string // SHA-256 hex of Text
	Generator  Generator
	Parameters []string // Required parameter names, first use order
	Select     *queryir.Select

	document *mango.Object
}

// Document returns a copy of the compiled query document. Parameter
// references appear as mango.Param values.
func (q *CompiledQuery) Document() *mango.Object {
	return q.document.Clone()
}

// trivialGenerator serializes the document once. The generator rejects
// any parameters.
func trivialGenerator(doc *mango.Object) (Generator, error) {
	data, err := mango.Encode(doc, nil)
	if err != nil {
		return nil, err
	}
	text := string(data)
	return func(params map[string]any) (string, error) {
		if len(params) > 0 {
			return "", &ParameterError{Message: "no parameters should be specified for this query"}
		}
		return text, nil
	}, nil
}

// parameterizedGenerator checks the parameter contract and encodes the
// document with the supplied values. The document is never mutated, so
// concurrent calls see only their own values.
func parameterizedGenerator(doc *mango.Object, required []string) Generator {
	allowed := make(map[string]bool, len(required))
	for _, name := range required {
		allowed[name] = true
	}
	return func(params map[string]any) (string, error) {
		for _, name := range required {
			if _, ok := params[name]; !ok {
				return "", &ParameterError{
					Name:    name,
					Message: fmt.Sprintf("required parameter %s has not been specified", name),
				}
			}
		}
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if !allowed[name] {
				return "", &ParameterError{
					Name:    name,
					Message: fmt.Sprintf("invalid or extraneous parameter %s has been specified", name),
				}
			}
		}

		data, err := mango.Encode(doc, mango.Params(params))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
