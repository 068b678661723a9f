// Package tsp implements the TSP Sequencer: greedy
// nearest-neighbor construction pinned at the origin/destination,
// followed by a bounded 2-opt improvement pass on the interior.
package tsp

import (
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/planerr"
	"github.com/saan-system/routeplanner/internal/providers"
)

// Config holds the sequencer's tuning knobs, a subset of
// config.SimulationConfig.
type Config struct {
	Max2OptIterations     int
	DistanceFallbackMiles float64
}

// Result is the ordered stop sequence and its total distance under the
// resolved matrix.
type Result struct {
	Stops              []domain.Stop
	TotalDistanceMiles float64
}

// Engine sequences a stop set into a route. It never blocks: the
// distance matrix is resolved ahead of time by the Planning Engine.
type Engine struct {
	cfg Config
}

// New constructs a sequencer bound to cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Sequence returns the ordered stops starting at the flagged origin
// (if any), ending at the flagged destination (if any), visiting every
// other stop exactly once, approximately minimizing total distance.
//
// Testable property 6: the returned sequence has length N and is a
// permutation of the input stops.
func (e *Engine) Sequence(stops []domain.Stop, matrix providers.Matrix) (Result, error) {
	if err := domain.ValidateStopSet(stops); err != nil {
		return Result{}, planerr.Wrap(planerr.InvalidInput, "", "invalid stop set", err)
	}
	if len(stops) <= 1 {
		return Result{Stops: append([]domain.Stop(nil), stops...), TotalDistanceMiles: 0}, nil
	}

	greedy := e.greedyConstruct(stops, matrix)
	improved := e.twoOpt(greedy, matrix)

	return Result{
		Stops:              improved,
		TotalDistanceMiles: e.totalDistance(improved, matrix),
	}, nil
}

func (e *Engine) dist(a, b domain.Stop, matrix providers.Matrix) float64 {
	if d, ok := matrix.Get(a.ID, b.ID); ok {
		return d
	}
	return e.cfg.DistanceFallbackMiles
}

func (e *Engine) totalDistance(stops []domain.Stop, matrix providers.Matrix) float64 {
	total := 0.0
	for i := 1; i < len(stops); i++ {
		total += e.dist(stops[i-1], stops[i], matrix)
	}
	return total
}

// greedyConstruct builds a nearest-neighbor tour: start at the origin
// (or the first stop if none is flagged), repeatedly append the
// nearest unvisited stop, and place the destination (if any) last.
func (e *Engine) greedyConstruct(stops []domain.Stop, matrix providers.Matrix) []domain.Stop {
	startIdx := 0
	destIdx := -1
	for i, s := range stops {
		if s.IsOrigin {
			startIdx = i
		}
		if s.IsDestination {
			destIdx = i
		}
	}

	visited := make([]bool, len(stops))
	order := make([]domain.Stop, 0, len(stops))

	cur := stops[startIdx]
	visited[startIdx] = true
	order = append(order, cur)
	if destIdx >= 0 {
		visited[destIdx] = true
	}

	for len(order) < len(stops)-boolToInt(destIdx >= 0) {
		bestIdx := -1
		bestDist := 0.0
		for i, s := range stops {
			if visited[i] {
				continue
			}
			d := e.dist(cur, s, matrix)
			if bestIdx == -1 || d < bestDist {
				bestIdx, bestDist = i, d
			}
		}
		if bestIdx == -1 {
			break
		}
		visited[bestIdx] = true
		cur = stops[bestIdx]
		order = append(order, cur)
	}

	if destIdx >= 0 {
		order = append(order, stops[destIdx])
	}
	return order
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// twoOpt improves the greedy tour by repeatedly reversing interior
// segments whenever doing so shortens the total distance, with the
// first and last stops pinned as the origin/destination. Capped at
// Max2OptIterations full passes.
func (e *Engine) twoOpt(order []domain.Stop, matrix providers.Matrix) []domain.Stop {
	n := len(order)
	if n < 4 {
		return order
	}

	route := append([]domain.Stop(nil), order...)

	for iter := 0; iter < e.cfg.Max2OptIterations; iter++ {
		improved := false
		for i := 1; i < n-2; i++ {
			for j := i + 1; j < n-1; j++ {
				a, b := route[i-1], route[i]
				c, d := route[j], route[j+1]

				before := e.dist(a, b, matrix) + e.dist(c, d, matrix)
				after := e.dist(a, c, matrix) + e.dist(b, d, matrix)

				if after < before {
					reverse(route, i, j)
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}

	return route
}

func reverse(route []domain.Stop, i, j int) {
	for i < j {
		route[i], route[j] = route[j], route[i]
		i++
		j--
	}
}
