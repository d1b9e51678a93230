package metrics

import (
	"errors"
	"math"
	"sort"

	"github.com/getsentry/vmtrace/internal/nodetree"
)

var errEmptyValues = errors.New("metrics: cannot compute a quantile of an empty list")

type (
	functionOrigin struct {
		maxSumSelfTimeNS uint64
		worstTraceID     string
		exampleTraceIDs  []string
	}

	// Aggregator merges the functions of many call trees, keeping the trace
	// where each function spent the most time.
	Aggregator struct {
		MaxUniqueFunctions int
		MaxNumOfExamples   int

		functions map[uint32]nodetree.CallTreeFunction
		origins   map[uint32]functionOrigin
	}

	FunctionMetrics struct {
		Name        string   `json:"name"`
		Package     string   `json:"package"`
		Fingerprint uint32   `json:"fingerprint"`
		InApp       bool     `json:"in_app"`
		P50         uint64   `json:"p50"`
		P75         uint64   `json:"p75"`
		P95         uint64   `json:"p95"`
		P99         uint64   `json:"p99"`
		Avg         float64  `json:"avg"`
		Sum         uint64   `json:"sum"`
		Count       int      `json:"count"`
		Worst       string   `json:"worst"`
		Examples    []string `json:"examples"`
	}
)

func NewAggregator(maxUniqueFunctions, maxNumOfExamples int) *Aggregator {
	return &Aggregator{
		MaxUniqueFunctions: maxUniqueFunctions,
		MaxNumOfExamples:   maxNumOfExamples,
		functions:          make(map[uint32]nodetree.CallTreeFunction),
		origins:            make(map[uint32]functionOrigin),
	}
}

// Add merges the functions collected from the call trees of one trace.
func (a *Aggregator) Add(traceID string, functions map[uint32]nodetree.CallTreeFunction) {
	for fingerprint, f := range functions {
		existing, exists := a.functions[fingerprint]
		if !exists {
			f.SelfTimesNS = append([]uint64(nil), f.SelfTimesNS...)
			a.functions[fingerprint] = f
			a.origins[fingerprint] = functionOrigin{
				maxSumSelfTimeNS: f.SumSelfTimeNS,
				worstTraceID:     traceID,
				exampleTraceIDs:  []string{traceID},
			}
			continue
		}
		existing.SelfTimesNS = append(existing.SelfTimesNS, f.SelfTimesNS...)
		existing.SumSelfTimeNS += f.SumSelfTimeNS
		a.functions[fingerprint] = existing

		origin := a.origins[fingerprint]
		if f.SumSelfTimeNS > origin.maxSumSelfTimeNS {
			origin.maxSumSelfTimeNS = f.SumSelfTimeNS
			origin.worstTraceID = traceID
		}
		if len(origin.exampleTraceIDs) < a.MaxNumOfExamples {
			origin.exampleTraceIDs = append(origin.exampleTraceIDs, traceID)
		}
		a.origins[fingerprint] = origin
	}
}

// ToMetrics returns the functions sorted by total self time, at most
// MaxUniqueFunctions of them.
func (a *Aggregator) ToMetrics() []FunctionMetrics {
	metrics := make([]FunctionMetrics, 0, len(a.functions))
	for fingerprint, f := range a.functions {
		if len(f.SelfTimesNS) == 0 {
			continue
		}
		values := append([]uint64(nil), f.SelfTimesNS...)
		sort.Slice(values, func(i, j int) bool {
			return values[i] < values[j]
		})
		origin := a.origins[fingerprint]
		m := FunctionMetrics{
			Name:        f.Function,
			Package:     f.Package,
			Fingerprint: fingerprint,
			InApp:       f.InApp,
			Avg:         float64(f.SumSelfTimeNS) / float64(len(values)),
			Sum:         f.SumSelfTimeNS,
			Count:       len(values),
			Worst:       origin.worstTraceID,
			Examples:    origin.exampleTraceIDs,
		}
		m.P50, _ = quantile(values, 0.50)
		m.P75, _ = quantile(values, 0.75)
		m.P95, _ = quantile(values, 0.95)
		m.P99, _ = quantile(values, 0.99)
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Sum == metrics[j].Sum {
			return metrics[i].Fingerprint < metrics[j].Fingerprint
		}
		return metrics[i].Sum > metrics[j].Sum
	})
	if a.MaxUniqueFunctions > 0 && len(metrics) > a.MaxUniqueFunctions {
		metrics = metrics[:a.MaxUniqueFunctions]
	}
	return metrics
}

// quantile uses the nearest rank method on sorted values.
func quantile(values []uint64, q float64) (uint64, error) {
	if len(values) == 0 {
		return 0, errEmptyValues
	}
	if q <= 0 || q > 1 {
		return 0, errors.New("metrics: q must be a value between 0 and 1.0")
	}
	index := int(math.Ceil(float64(len(values))*q)) - 1
	return values[index], nil
}
