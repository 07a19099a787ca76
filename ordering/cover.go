package ordering

// minCover returns a minimum vertex cover of the cut edges of a bisection,
// found through a maximum matching of the bipartite graph those edges form
// (Koenig's construction). The cover is returned as a separator labeling: the
// covered vertices get label 2.
func (g *sgraph) minCover(where []int) []int {
	var (
		left, right []int
		index       = make([]int, g.nvtxs)
	)
	for v := 0; v < g.nvtxs; v++ {
		index[v] = -1
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			if where[u] != where[v] {
				if where[v] == 0 {
					index[v] = len(left)
					left = append(left, v)
				} else {
					index[v] = len(right)
					right = append(right, v)
				}
				break
			}
		}
	}
	sep := append([]int(nil), where...)
	if len(left) == 0 {
		return sep
	}

	// Bipartite adjacency from the left side only
	adj := make([][]int, len(left))
	for i, v := range left {
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			if where[u] == 1 {
				adj[i] = append(adj[i], index[u])
			}
		}
	}
	m := newMatching(adj, len(right))
	m.maximize()

	// Alternating reachability from the free left vertices
	var (
		seenL = make([]bool, len(left))
		seenR = make([]bool, len(right))
		queue []int
	)
	for i := range left {
		if m.matchL[i] < 0 {
			seenL[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, j := range adj[i] {
			if seenR[j] {
				continue
			}
			seenR[j] = true
			if k := m.matchR[j]; k >= 0 && !seenL[k] {
				seenL[k] = true
				queue = append(queue, k)
			}
		}
	}
	for i, v := range left {
		if !seenL[i] {
			sep[v] = 2
		}
	}
	for j, v := range right {
		if seenR[j] {
			sep[v] = 2
		}
	}
	return sep
}

// matching is a bipartite matching grown by augmenting paths.
type matching struct {
	adj            [][]int
	matchL, matchR []int
	visit          []int
	stamp          int
}

func newMatching(adj [][]int, nright int) *matching {
	m := &matching{
		adj:    adj,
		matchL: make([]int, len(adj)),
		matchR: make([]int, nright),
		visit:  make([]int, nright),
	}
	for i := range m.matchL {
		m.matchL[i] = -1
	}
	for j := range m.matchR {
		m.matchR[j] = -1
	}
	return m
}

// maximize augments until no augmenting path is left. A greedy pass seeds the
// matching first.
func (m *matching) maximize() (size int) {
	for i, nbrs := range m.adj {
		for _, j := range nbrs {
			if m.matchR[j] < 0 {
				m.matchL[i], m.matchR[j] = j, i
				size++
				break
			}
		}
	}
	for i := range m.adj {
		if m.matchL[i] >= 0 {
			continue
		}
		m.stamp++
		if m.augment(i) {
			size++
		}
	}
	return
}

func (m *matching) augment(i int) bool {
	for _, j := range m.adj[i] {
		if m.visit[j] == m.stamp {
			continue
		}
		m.visit[j] = m.stamp
		if m.matchR[j] < 0 || m.augment(m.matchR[j]) {
			m.matchL[i], m.matchR[j] = j, i
			return true
		}
	}
	return false
}
