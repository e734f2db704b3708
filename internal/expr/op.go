package expr

import "fmt"

// Kind tags an operation-chain node.
type Kind int

// Operation kinds.
const (
	KindSource Kind = iota
	KindFilter
	KindOrder
	KindAdditionalSource
	KindProject
	KindJoin
	KindGroupJoin
	KindResult
)

var kindNames = [...]string{
	KindSource:           "Source",
	KindFilter:           "Filter",
	KindOrder:            "Order",
	KindAdditionalSource: "AdditionalSource",
	KindProject:          "Project",
	KindJoin:             "Join",
	KindGroupJoin:        "GroupJoin",
	KindResult:           "Result",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Direction is an ordering direction.
type Direction int

// Ordering directions.
const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ModifierKind identifies a post-projection result operator.
type ModifierKind int

// Result operators.
const (
	ModTake ModifierKind = iota
	ModSkip
	ModCount
	ModFirst
	ModLast
	ModSingle
	ModAny
)

var modifierNames = [...]string{
	ModTake:   "Take",
	ModSkip:   "Skip",
	ModCount:  "Count",
	ModFirst:  "First",
	ModLast:   "Last",
	ModSingle: "Single",
	ModAny:    "Any",
}

func (m ModifierKind) String() string {
	if m >= 0 && int(m) < len(modifierNames) {
		return modifierNames[m]
	}
	return fmt.Sprintf("Modifier(%d)", int(m))
}

// Op is one step of an operation chain. Chains are linked from the last
// step to the first through Prev; only a Source op has a nil Prev.
//
// Which fields are set depends on Kind:
//
//	Source            Item, Source or Chain
//	Filter            Lambda (predicate)
//	Order             Lambda (key), Direction, GroupStart
//	AdditionalSource  Item, Lambda (collection selector), Projection (optional)
//	Project           Projection, Distinct
//	Join              Item, Source, OuterKey, InnerKey
//	GroupJoin         Item, Source, OuterKey, InnerKey, Into
//	Result            Modifier, Count
//
// Ops are produced by an external front end and treated as read-only.
type Op struct {
	Kind       Kind
	Prev       *Op
	Item       *Parameter
	Source     *ConstantSource
	Chain      *Op
	Lambda     *Lambda
	Projection *Lambda
	Direction  Direction
	GroupStart bool
	Distinct   bool
	OuterKey   *Lambda
	InnerKey   *Lambda
	Into       *Parameter
	Modifier   ModifierKind
	Count      int64
}

// From starts a chain over src, naming its items item.
func From(item *Parameter, src *ConstantSource) *Op {
	return &Op{Kind: KindSource, Item: item, Source: src}
}

// FromChain starts a chain whose items come from another chain.
func FromChain(item *Parameter, chain *Op) *Op {
	return &Op{Kind: KindSource, Item: item, Chain: chain}
}

// Where appends a filter.
func (o *Op) Where(pred *Lambda) *Op {
	return &Op{Kind: KindFilter, Prev: o, Lambda: pred}
}

// OrderBy opens a new ordering group, ascending.
func (o *Op) OrderBy(key *Lambda) *Op {
	return o.order(key, Ascending, true)
}

// OrderByDescending opens a new ordering group, descending.
func (o *Op) OrderByDescending(key *Lambda) *Op {
	return o.order(key, Descending, true)
}

// ThenBy continues the open ordering group, ascending.
func (o *Op) ThenBy(key *Lambda) *Op {
	return o.order(key, Ascending, false)
}

// ThenByDescending continues the open ordering group, descending.
func (o *Op) ThenByDescending(key *Lambda) *Op {
	return o.order(key, Descending, false)
}

func (o *Op) order(key *Lambda, dir Direction, start bool) *Op {
	return &Op{Kind: KindOrder, Prev: o, Lambda: key, Direction: dir, GroupStart: start}
}

// SelectMany adds an additional source. collection yields the items named
// item for each current element; projection is the result selector and may
// be nil when a later Select supplies it.
func (o *Op) SelectMany(item *Parameter, collection, projection *Lambda) *Op {
	return &Op{Kind: KindAdditionalSource, Prev: o, Item: item, Lambda: collection, Projection: projection}
}

// Select appends a projection.
func (o *Op) Select(selector *Lambda) *Op {
	return &Op{Kind: KindProject, Prev: o, Projection: selector}
}

// SelectDistinct appends a projection whose results are de-duplicated.
func (o *Op) SelectDistinct(selector *Lambda) *Op {
	return &Op{Kind: KindProject, Prev: o, Projection: selector, Distinct: true}
}

// Join appends an inner join against src on outerKey == innerKey.
func (o *Op) Join(item *Parameter, src *ConstantSource, outerKey, innerKey *Lambda) *Op {
	return &Op{Kind: KindJoin, Prev: o, Item: item, Source: src, OuterKey: outerKey, InnerKey: innerKey}
}

// GroupJoin appends a group join; into names the per-element group.
func (o *Op) GroupJoin(item *Parameter, src *ConstantSource, outerKey, innerKey *Lambda, into *Parameter) *Op {
	return &Op{Kind: KindGroupJoin, Prev: o, Item: item, Source: src, OuterKey: outerKey, InnerKey: innerKey, Into: into}
}

// Take limits the result to n items.
func (o *Op) Take(n int64) *Op {
	return &Op{Kind: KindResult, Prev: o, Modifier: ModTake, Count: n}
}

// Skip drops the first n items.
func (o *Op) Skip(n int64) *Op {
	return &Op{Kind: KindResult, Prev: o, Modifier: ModSkip, Count: n}
}

// Result appends a count-less result operator (Count, First, ...).
func (o *Op) Result(m ModifierKind) *Op {
	return &Op{Kind: KindResult, Prev: o, Modifier: m}
}
