package candidature

// Order selects how a result set is presented.
type Order int

const (
	// OrderNatural keeps pagination-encounter order.
	OrderNatural Order = iota
	// OrderByStatus groups by status symbol, see SortByStatus.
	OrderByStatus
)

func ParseOrder(sortByStatus bool) Order {
	if sortByStatus {
		return OrderByStatus
	}
	return OrderNatural
}

// StatusGroups is the bucket sequence used by SortByStatus.
var StatusGroups = []string{
	SymbolIncluded,
	SymbolCVRead,
	SymbolApplied,
	SymbolRejected,
}

// Apply returns set in the given order, the input is left untouched.
func (o Order) Apply(set []Candidature) []Candidature {
	if o == OrderByStatus {
		return SortByStatus(set)
	}
	out := make([]Candidature, len(set))
	copy(out, set)
	return out
}

// SortByStatus stably partitions set into the StatusGroups buckets and
// concatenates them. Records with a symbol outside of StatusGroups are kept
// at the end in natural order so nothing is dropped.
func SortByStatus(set []Candidature) []Candidature {
	buckets := make(map[string][]Candidature, len(StatusGroups))
	var unknown []Candidature
	for _, c := range set {
		known := false
		for _, symbol := range StatusGroups {
			if c.Status.Symbol == symbol {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, c)
			continue
		}
		buckets[c.Status.Symbol] = append(buckets[c.Status.Symbol], c)
	}

	out := make([]Candidature, 0, len(set))
	for _, symbol := range StatusGroups {
		out = append(out, buckets[symbol]...)
	}
	return append(out, unknown...)
}
