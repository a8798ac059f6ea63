package usecase

// DisjointSet tracks which canonical product ids were absorbed by merges.
// Only ids passed to Union are stored; every other id is its own root.
// Not safe for concurrent use.
type DisjointSet struct {
	parent map[string]string
}

// NewDisjointSet creates an empty set.
func NewDisjointSet() *DisjointSet {
	return &DisjointSet{parent: make(map[string]string)}
}

// Find returns the live representative for id.
func (d *DisjointSet) Find(id string) string {
	root := id
	for {
		p, ok := d.parent[root]
		if !ok || p == root {
			break
		}
		root = p
	}
	// path compression
	for id != root {
		next := d.parent[id]
		d.parent[id] = root
		id = next
	}
	return root
}

// Union records that loser was merged into keeper. It reports false when both
// ids already share a representative.
func (d *DisjointSet) Union(keeper, loser string) bool {
	kr, lr := d.Find(keeper), d.Find(loser)
	if kr == lr {
		return false
	}
	d.parent[lr] = kr
	return true
}

// Absorbed reports whether id no longer names a live product.
func (d *DisjointSet) Absorbed(id string) bool {
	return d.Find(id) != id
}
