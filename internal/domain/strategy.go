package domain

// Strategy names the DOM predicate used to match an element.
type Strategy string

const (
	StrategyID          Strategy = "id"
	StrategyRole        Strategy = "role"
	StrategyText        Strategy = "text"
	StrategyAriaLabel   Strategy = "aria-label"
	StrategyName        Strategy = "name"
	StrategyPlaceholder Strategy = "placeholder"
	StrategyType        Strategy = "type"
	StrategyClass       Strategy = "class"
	StrategyCSS         Strategy = "css"
	StrategyPick        Strategy = "oracle-pick"
)

// Predicate selects elements on a page.
type Predicate struct {
	Strategy Strategy `json:"strategy"`
	Value    string   `json:"value"`
}

func (p Predicate) String() string { return string(p.Strategy) + "=" + p.Value }

// Attribute is one non-null descriptor attribute paired with the strategy
// that matches it.
type Attribute struct {
	Key string
	Predicate
}
