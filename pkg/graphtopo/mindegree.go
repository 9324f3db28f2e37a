package graphtopo

// FillIn is a symbolic fill-in edge introduced by eliminating some vertex
// before either endpoint is itself eliminated.
type FillIn struct {
	A, B int
}

// MinDegreeOrder computes a greedy minimum-degree elimination ordering of
// the undirected graph described by adj (adj[v] lists v's neighbours, no
// self-loops). It returns the elimination order (a permutation of
// [0, len(adj))) and the list of symbolic fill-in edges introduced along the
// way — the same information symbolic sparse LU needs to predict the
// nonzero pattern of L+U before doing any numeric factorization.
//
// This is intentionally a single, narrow entry point (per the "isolate
// fill-in minimization behind a clear interface" design note) so a future
// nested-dissection or AMD implementation can replace it without touching
// any caller.
func MinDegreeOrder(adj [][]int) (order []int, fillIns []FillIn) {
	return MinDegreeOrderPinLast(adj, -1)
}

// MinDegreeOrderPinLast is MinDegreeOrder with one vertex (pinned, or -1 for
// none) excluded from pivot selection until it is the only vertex left. Its
// neighbour set still participates in fill-in tracking throughout, so edges
// touching it are accounted for; it is simply never chosen as pivot early.
// Callers use this to force a distinguished vertex (a slack bus) to the end
// of the elimination order without needing a second graph walk.
func MinDegreeOrderPinLast(adj [][]int, pinned int) (order []int, fillIns []FillIn) {
	n := len(adj)
	neighbors := make([]map[int]struct{}, n)
	for v := range adj {
		neighbors[v] = make(map[int]struct{}, len(adj[v]))
		for _, w := range adj[v] {
			if w != v {
				neighbors[v][w] = struct{}{}
			}
		}
	}

	eliminated := make([]bool, n)
	order = make([]int, 0, n)

	for step := 0; step < n; step++ {
		// Pick the remaining vertex with the smallest degree, skipping the
		// pinned vertex unless nothing else remains.
		pivot := -1
		bestDegree := -1
		remaining := 0
		for v := 0; v < n; v++ {
			if !eliminated[v] {
				remaining++
			}
		}
		for v := 0; v < n; v++ {
			if eliminated[v] {
				continue
			}
			if v == pinned && remaining > 1 {
				continue
			}
			d := len(neighbors[v])
			if bestDegree == -1 || d < bestDegree {
				bestDegree = d
				pivot = v
			}
		}
		if pivot == -1 {
			break
		}

		// Connect every pair of pivot's remaining neighbours: this is the
		// symbolic fill-in a real LU factorization would introduce when
		// eliminating pivot's row/column.
		nbrs := make([]int, 0, len(neighbors[pivot]))
		for w := range neighbors[pivot] {
			nbrs = append(nbrs, w)
		}
		for i := 0; i < len(nbrs); i++ {
			for j := i + 1; j < len(nbrs); j++ {
				a, b := nbrs[i], nbrs[j]
				if _, ok := neighbors[a][b]; !ok {
					neighbors[a][b] = struct{}{}
					neighbors[b][a] = struct{}{}
					fillIns = append(fillIns, FillIn{A: a, B: b})
				}
			}
		}

		// Remove pivot from the graph.
		for w := range neighbors[pivot] {
			delete(neighbors[w], pivot)
		}
		eliminated[pivot] = true
		order = append(order, pivot)
	}

	return order, fillIns
}
