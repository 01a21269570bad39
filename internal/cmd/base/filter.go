package base

import (
	"fmt"

	"github.com/hashicorp/go-bexpr"
)

// filterItem is the namespace a filter expression selects against, so
// expressions read like "/item/type" == "file".
type filterItem struct {
	Item any `json:"item"`
}

// Filter matches list items against a boolean filter expression. The zero
// Filter matches everything.
type Filter struct {
	eval *bexpr.Evaluator
}

// NewFilter returns a Filter which can be matched against. An empty
// expression matches every item.
func NewFilter(f string) (*Filter, error) {
	if f == "" {
		return &Filter{}, nil
	}
	e, err := bexpr.CreateEvaluator(f, bexpr.WithTagName("json"))
	if err != nil {
		return nil, fmt.Errorf("Error building filter expression: %w", err)
	}
	return &Filter{eval: e}, nil
}

// Match returns whether the provided item matches the filter. A filter that
// does not fit the structure of the item is not a match.
func (f *Filter) Match(item any) bool {
	if f.eval == nil {
		return true
	}
	m, err := f.eval.Evaluate(filterItem{Item: item})
	return err == nil && m
}
