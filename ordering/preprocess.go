package ordering

import "sort"

// compressionFraction is the largest compressed to original size ratio for
// which ordering the compressed graph is worth it.
const compressionFraction = 0.85

// compress merges vertices with identical closed neighborhoods into
// supernodes. It returns the graph of supernodes, whose labels are supernode
// ids, and the vertices of each supernode. A nil graph means too few vertices
// merged.
func (g *sgraph) compress() (*sgraph, [][]int) {
	var (
		n     = g.nvtxs
		keys  = make([]int, n)
		perm  = make([]int, n)
		super = make([]int, n)
		mark  = make([]int, n)
	)
	for v := 0; v < n; v++ {
		keys[v] = v
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			keys[v] += u
		}
		perm[v], super[v], mark[v] = v, -1, -1
	}
	sort.SliceStable(perm, func(i, j int) bool {
		a, b := perm[i], perm[j]
		if keys[a] != keys[b] {
			return keys[a] < keys[b]
		}
		return g.degree(a) < g.degree(b)
	})

	var members [][]int
	for i, v := range perm {
		if super[v] >= 0 {
			continue
		}
		s := len(members)
		super[v] = s
		members = append(members, []int{v})
		mark[v] = v
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			mark[u] = v
		}
		for _, u := range perm[i+1:] {
			if keys[u] != keys[v] || g.degree(u) != g.degree(v) {
				break
			}
			if super[u] >= 0 || mark[u] != v {
				continue
			}
			same := true
			for _, w := range g.adjncy[g.xadj[u]:g.xadj[u+1]] {
				if mark[w] != v {
					same = false
					break
				}
			}
			if same {
				super[u] = s
				members[s] = append(members[s], u)
			}
		}
	}
	cn := len(members)
	if float64(cn) >= compressionFraction*float64(n) {
		return nil, nil
	}

	cg := &sgraph{
		nvtxs: cn,
		xadj:  make([]int, 1, cn+1),
		vwgt:  make([]int, cn),
		label: make([]int, cn),
	}
	seen := make([]int, cn)
	for s := range seen {
		seen[s] = -1
	}
	for s, mem := range members {
		seen[s] = s
		v := mem[0]
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			if t := super[u]; seen[t] != s {
				seen[t] = s
				cg.adjncy = append(cg.adjncy, t)
			}
		}
		cg.xadj = append(cg.xadj, len(cg.adjncy))
		for _, m := range mem {
			cg.vwgt[s] += g.vwgt[m]
		}
		cg.label[s] = s
	}
	return cg, members
}

// prune flags the vertices whose degree exceeds pfactor/10 times the average
// degree. They are ordered last.
func (g *sgraph) prune(pfactor int) (keep []bool, pruned []int) {
	if g.nvtxs == 0 {
		return nil, nil
	}
	var (
		avg   = float64(g.nedges()) / float64(g.nvtxs)
		limit = 0.1 * float64(pfactor) * avg
	)
	keep = make([]bool, g.nvtxs)
	for v := range keep {
		if float64(g.degree(v)) > limit {
			pruned = append(pruned, v)
		} else {
			keep[v] = true
		}
	}
	return
}
