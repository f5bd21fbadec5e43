package domain

import "fmt"

// AllSentinel is the configuration literal that selects every value.
const AllSentinel = "All"

// Selector is either every available value or an explicit list.
type Selector[T any] struct {
	All    bool
	Values []T
}

// SelectAll returns a selector matching every value.
func SelectAll[T any]() Selector[T] {
	return Selector[T]{All: true}
}

// SelectExplicit returns a selector over values.
func SelectExplicit[T any](values ...T) Selector[T] {
	return Selector[T]{Values: values}
}

// IsZero reports whether the selector was never set.
func (s Selector[T]) IsZero() bool {
	return !s.All && len(s.Values) == 0
}

// Resolve returns the explicit values, or calls all when the selector
// matches every value.
func (s Selector[T]) Resolve(all func() ([]T, error)) ([]T, error) {
	if s.All {
		return all()
	}
	return s.Values, nil
}

// UnmarshalYAML accepts the literal "All" or a list.
func (s *Selector[T]) UnmarshalYAML(unmarshal func(any) error) error {
	var literal string
	if err := unmarshal(&literal); err == nil {
		if literal != AllSentinel {
			return fmt.Errorf("selector must be %q or a list, got %q", AllSentinel, literal)
		}
		*s = SelectAll[T]()
		return nil
	}
	var values []T
	if err := unmarshal(&values); err != nil {
		return fmt.Errorf("selector must be %q or a list: %w", AllSentinel, err)
	}
	*s = SelectExplicit(values...)
	return nil
}

// String renders the selector for logs.
func (s Selector[T]) String() string {
	if s.All {
		return AllSentinel
	}
	return fmt.Sprint(s.Values)
}
