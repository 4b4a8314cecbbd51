// Package simulator generates physiologically plausible synthetic
// heart-rate readings. Every subject gets a stable resting baseline
// drawn once at construction, and subsequent readings are sampled as
// noise and activity bursts around that baseline, so consecutive
// readings from the same subject stay coherent instead of swinging
// tens of bpm between ticks.
package simulator

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"heartbeat/src/domain"
	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

// Options control the shape of the synthetic stream.
type Options struct {
	// CustomerCount sizes the subject pool; ids are "cust_00001" style.
	CustomerCount int
	// InvalidRatio is the fraction of events carrying a deliberately
	// out-of-range heart rate (28 or 222 bpm) to exercise the ingest
	// quarantine path. 0 in tests, small in production.
	InvalidRatio float64
	// Soft bounds applied to normally sampled readings. Injected
	// invalid values ignore them on purpose.
	HeartRateMin int
	HeartRateMax int
	// DynamicCustomers switches emission to a rotating active subset
	// of the pool instead of the whole pool.
	DynamicCustomers         bool
	ActiveCustomersMin       int
	ActiveCustomersMax       int
	ActiveRefreshProbability float64
}

// Stream is an infinite source of heartbeat events. Not safe for
// concurrent use; each producer owns one Stream.
type Stream struct {
	options   Options
	rng       *rand.Rand
	customers []string
	baselines map[string]int
	active    []string
	minActive int
	maxActive int
	now       func() time.Time
}

// CustomerIDPool builds the deterministic subject id list shared by
// the simulator and anything that needs to address the same subjects.
func CustomerIDPool(customerCount int) []string {
	return lo.Times(customerCount, func(i int) string {
		return fmt.Sprintf("cust_%05d", i+1)
	})
}

func NewStream(options Options) (*Stream, error) {
	errorb := oops.
		In(util.GetFunctionName()).
		Code(perr.ECONFIG)

	if options.CustomerCount < 1 {
		return nil, errorb.Errorf("customer count must be at least 1: given %d", options.CustomerCount)
	}
	if options.InvalidRatio < 0 || options.InvalidRatio > 1 {
		return nil, errorb.Errorf("invalid ratio must be in [0, 1]: given %f", options.InvalidRatio)
	}
	if options.ActiveRefreshProbability < 0 || options.ActiveRefreshProbability > 1 {
		return nil, errorb.Errorf("active refresh probability must be in [0, 1]: given %f", options.ActiveRefreshProbability)
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	customers := CustomerIDPool(options.CustomerCount)
	baselines := make(map[string]int, len(customers))
	for _, customerID := range customers {
		baselines[customerID] = assignRestingBaseline(rng)
	}

	minActive, maxActive := options.CustomerCount, options.CustomerCount
	if options.DynamicCustomers {
		minActive = clamp(options.ActiveCustomersMin, 1, options.CustomerCount)
		maxActive = clamp(options.ActiveCustomersMax, 1, options.CustomerCount)
		if minActive > maxActive {
			return nil, errorb.Errorf(
				"active customers min %d cannot exceed max %d", minActive, maxActive,
			)
		}
	}

	stream := &Stream{
		options:   options,
		rng:       rng,
		customers: customers,
		baselines: baselines,
		minActive: minActive,
		maxActive: maxActive,
		now:       time.Now,
	}
	stream.active = stream.sampleActiveCustomers()

	return stream, nil
}

// Next produces one synthetic reading. About 5% of events carry a
// timestamp back-dated 1 to 8 seconds to mimic device clock skew.
func (s *Stream) Next() (domain.HeartbeatEvent, error) {
	if s.options.DynamicCustomers && s.rng.Float64() < s.options.ActiveRefreshProbability {
		s.active = s.sampleActiveCustomers()
	}

	customerID := s.active[s.rng.IntN(len(s.active))]
	timestamp := s.now().UTC()

	if s.rng.Float64() < 0.05 {
		timestamp = timestamp.Add(-time.Duration(1+s.rng.IntN(8)) * time.Second)
	}

	var heartRate int
	if s.rng.Float64() < s.options.InvalidRatio {
		heartRate = lo.Sample([]int{28, 222})
	} else {
		heartRate = s.sampleHeartRate(s.baselines[customerID])
	}

	return domain.NewHeartbeatEventAt(uuid.New(), customerID, timestamp, heartRate)
}

// Resting rates follow a Gaussian centred on 72 bpm with sigma 10,
// clipped to [50, 100], a plausible healthy-adult population.
func assignRestingBaseline(rng *rand.Rand) int {
	baseline := 72 + rng.NormFloat64()*10
	return clamp(int(baseline), 50, 100)
}

// The activity mixture: 75% quiet readings with small noise, 15% light
// exercise, 7% peak exercise, 3% bradycardic dip. Results are clamped
// to the configured soft bounds so normal operation never trips the
// ingest validator.
func (s *Stream) sampleHeartRate(resting int) int {
	roll := s.rng.Float64()

	var rate float64
	switch {
	case roll < 0.75:
		rate = float64(resting) + s.rng.NormFloat64()*5
	case roll < 0.90:
		rate = float64(resting + 20 + s.rng.IntN(31))
	case roll < 0.97:
		rate = float64(resting + 50 + s.rng.IntN(41))
	default:
		rate = float64(resting - (5 + s.rng.IntN(11)))
	}

	return clamp(int(rate), s.options.HeartRateMin, s.options.HeartRateMax)
}

func (s *Stream) sampleActiveCustomers() []string {
	activeCount := s.minActive
	if s.maxActive > s.minActive {
		activeCount += s.rng.IntN(s.maxActive - s.minActive + 1)
	}
	return lo.Samples(s.customers, activeCount)
}

func clamp(value, low, high int) int {
	return max(low, min(high, value))
}
