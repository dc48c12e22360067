package graph

import (
	"context"

	"github.com/caesium-cloud/hera/internal/models"
	"github.com/pkg/errors"
)

// Direction selects which side of a job a walk follows.
type Direction string

const (
	// Upstream walks the jobs a job waits on: its progress.
	Upstream Direction = "upstream"
	// Downstream walks the jobs waiting on a job: its impact.
	Downstream Direction = "downstream"
)

// ParseDirection accepts "upstream" or "downstream"; empty means
// downstream.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case "", Downstream:
		return Downstream, nil
	case Upstream:
		return Upstream, nil
	default:
		return "", errors.Errorf("unknown graph direction %q", raw)
	}
}

type Node struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	GroupID uint   `json:"group_id"`
	Enabled bool   `json:"enabled"`
}

// Edge points from a job to one that depends on it.
type Edge struct {
	From uint `json:"from"`
	To   uint `json:"to"`
}

// Graph is the part of the dependency graph reachable from Root in one
// direction. Root is the first node; the rest follow in breadth-first
// order.
type Graph struct {
	Root      uint      `json:"root"`
	Direction Direction `json:"direction"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
}

// Walk collects every job transitively reachable from jobID. Cycles in
// stored dependency lists are visited once.
func Walk(ctx context.Context, repo Repository, jobID uint, dir Direction) (*Graph, error) {
	root, err := repo.FindJob(ctx, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "graph of job %d", jobID)
	}

	g := &Graph{Root: jobID, Direction: dir, Nodes: []Node{nodeOf(root)}, Edges: []Edge{}}
	seen := map[uint]bool{jobID: true}
	edges := map[Edge]bool{}

	for queue := []uint{jobID}; len(queue) > 0; queue = queue[1:] {
		cur := queue[0]

		var next models.Jobs
		if dir == Upstream {
			next, err = repo.UpstreamJobs(ctx, cur)
		} else {
			next, err = repo.DownstreamJobs(ctx, cur)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s of job %d", dir, cur)
		}

		for _, j := range next {
			e := Edge{From: cur, To: j.ID}
			if dir == Upstream {
				e = Edge{From: j.ID, To: cur}
			}
			if !edges[e] {
				edges[e] = true
				g.Edges = append(g.Edges, e)
			}

			if !seen[j.ID] {
				seen[j.ID] = true
				g.Nodes = append(g.Nodes, nodeOf(j))
				queue = append(queue, j.ID)
			}
		}
	}
	return g, nil
}

func nodeOf(j *models.Job) Node {
	return Node{ID: j.ID, Name: j.Name, GroupID: j.GroupID, Enabled: j.Auto}
}
