package analytics

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
)

// ForumGraph is the directed reply graph between forum authors.
// Node ids are Moodle user ids.
type ForumGraph struct {
	g *simple.DirectedGraph
}

// GraphEdge is a replier to parent-author edge
type GraphEdge struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// GraphMetrics are the whole-graph statistics
type GraphMetrics struct {
	Nodes         int     `json:"nodes"`
	Edges         int     `json:"edges"`
	Density       float64 `json:"density"`
	AvgClustering float64 `json:"avg_clustering"`
}

// NodeCentrality holds per-user centrality, normalized to [0,1]
type NodeCentrality struct {
	UserID           int64   `json:"user_id"`
	InDegree         int     `json:"in_degree"`
	OutDegree        int     `json:"out_degree"`
	DegreeCentrality float64 `json:"degree_centrality"`
	Betweenness      float64 `json:"betweenness_centrality"`
}

// NewForumGraph creates an empty graph
func NewForumGraph() *ForumGraph {
	return &ForumGraph{g: simple.NewDirectedGraph()}
}

// AddUser adds a node if it is not present yet
func (f *ForumGraph) AddUser(userID int64) {
	if f.g.Node(userID) == nil {
		f.g.AddNode(simple.Node(userID))
	}
}

// AddReply records that from replied to a post by to.
// Replies to oneself are ignored and reported as false.
func (f *ForumGraph) AddReply(from, to int64) bool {
	if from == to {
		return false
	}
	f.AddUser(from)
	f.AddUser(to)
	f.g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	return true
}

// Nodes returns the user ids in ascending order
func (f *ForumGraph) Nodes() []int64 {
	ids := make([]int64, 0, f.g.Nodes().Len())
	nodes := f.g.Nodes()
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Edges returns every edge ordered by (from, to)
func (f *ForumGraph) Edges() []GraphEdge {
	var out []GraphEdge
	edges := f.g.Edges()
	for edges.Next() {
		e := edges.Edge()
		out = append(out, GraphEdge{From: e.From().ID(), To: e.To().ID()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	if out == nil {
		out = []GraphEdge{}
	}
	return out
}

// Metrics computes density and the average clustering coefficient
func (f *ForumGraph) Metrics() GraphMetrics {
	n := f.g.Nodes().Len()
	m := f.g.Edges().Len()
	metrics := GraphMetrics{Nodes: n, Edges: m}
	if n > 1 {
		metrics.Density = float64(m) / float64(n*(n-1))
	}
	metrics.AvgClustering = f.averageClustering()
	return metrics
}

// Centrality returns degree and betweenness centrality per user, ordered by user id
func (f *ForumGraph) Centrality() []NodeCentrality {
	ids := f.Nodes()
	n := len(ids)
	out := make([]NodeCentrality, 0, n)
	if n == 0 {
		return out
	}

	betweenness := network.Betweenness(f.g)
	scale := 0.0
	if n > 2 {
		scale = 1 / float64((n-1)*(n-2))
	}

	for _, id := range ids {
		in := f.g.To(id).Len()
		outDeg := f.g.From(id).Len()
		c := NodeCentrality{UserID: id, InDegree: in, OutDegree: outDeg}
		if n == 1 {
			c.DegreeCentrality = 1
		} else {
			c.DegreeCentrality = float64(in+outDeg) / float64(n-1)
		}
		c.Betweenness = betweenness[id] * scale
		out = append(out, c)
	}
	return out
}

// averageClustering averages the local clustering coefficient over the
// undirected projection. Nodes with fewer than two neighbours count as 0.
func (f *ForumGraph) averageClustering() float64 {
	ids := f.Nodes()
	if len(ids) == 0 {
		return 0
	}

	total := 0.0
	for _, id := range ids {
		neighbours := f.undirectedNeighbours(id)
		k := len(neighbours)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if f.connected(neighbours[i], neighbours[j]) {
					links++
				}
			}
		}
		total += 2 * float64(links) / float64(k*(k-1))
	}
	return total / float64(len(ids))
}

func (f *ForumGraph) undirectedNeighbours(id int64) []int64 {
	seen := make(map[int64]struct{})
	collect := func(nodes graph.Nodes) {
		for nodes.Next() {
			if other := nodes.Node().ID(); other != id {
				seen[other] = struct{}{}
			}
		}
	}
	collect(f.g.From(id))
	collect(f.g.To(id))

	out := make([]int64, 0, len(seen))
	for other := range seen {
		out = append(out, other)
	}
	return out
}

func (f *ForumGraph) connected(a, b int64) bool {
	return f.g.HasEdgeBetween(a, b)
}
