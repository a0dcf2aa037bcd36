package alpha

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/stormsniper/engine/internal/weather"
)

// QuestionKind selects which ensemble statistic stands in for the
// weather-implied probability of a market resolving YES.
type QuestionKind int

const (
	KindUnknown QuestionKind = iota
	KindRain                 // mean ensemble rain probability
	KindTemperature          // threshold transform on mean temperature
	KindStorm                // pressure-deficit transform (snow, storm, hurricane)
)

func (k QuestionKind) String() string {
	switch k {
	case KindRain:
		return "rain"
	case KindTemperature:
		return "temperature"
	case KindStorm:
		return "storm"
	default:
		return "unknown"
	}
}

// MappedQuestion is the parsed reading of one market question: which
// location it concerns, which estimator applies, and any threshold parsed
// from the text.
type MappedQuestion struct {
	Location       string
	Kind           QuestionKind
	TempThresholdC float64
	Above          bool
}

// ProbabilityMapper turns a market question into a location plus an
// estimator selection. Implementations other than keyword matching (an LLM
// classifier, a curated market list) can be swapped in behind this.
type ProbabilityMapper interface {
	Map(question string) (MappedQuestion, bool)
}

// KeywordMapper maps questions by substring matching against the configured
// location list and a fixed keyword taxonomy. It is deliberately coarse;
// questions it cannot place are skipped rather than guessed at.
type KeywordMapper struct {
	locations []string
}

func NewKeywordMapper(locations []string) *KeywordMapper {
	lower := make([]string, 0, len(locations))
	for _, l := range locations {
		lower = append(lower, strings.ToLower(l))
	}
	return &KeywordMapper{locations: lower}
}

var thresholdRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)`)

func (m *KeywordMapper) Map(question string) (MappedQuestion, bool) {
	q := strings.ToLower(question)

	var mq MappedQuestion
	for _, loc := range m.locations {
		if strings.Contains(q, loc) {
			mq.Location = loc
			break
		}
	}
	if mq.Location == "" {
		return MappedQuestion{}, false
	}

	switch {
	case containsAny(q, "snow", "blizzard", "storm", "hurricane", "cyclone"):
		mq.Kind = KindStorm
	case containsAny(q, "rain", "precip", "shower", "drizzle"):
		mq.Kind = KindRain
	case containsAny(q, "temperature", "degrees", "°", "high temp", "low temp", "hot", "cold"):
		mq.Kind = KindTemperature
	default:
		return MappedQuestion{}, false
	}

	if mq.Kind == KindTemperature {
		match := thresholdRe.FindString(q)
		if match == "" {
			return MappedQuestion{}, false
		}
		v, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return MappedQuestion{}, false
		}
		// US market questions quote Fahrenheit unless they say otherwise.
		if !containsAny(q, "°c", "celsius") {
			v = (v - 32) * 5 / 9
		}
		mq.TempThresholdC = v
		mq.Above = !containsAny(q, "below", "under", "less than", "colder")
	}

	return mq, true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Pressure-deficit transform tuning. A mean pressure pressureDeficitScale
// hPa below standard maps to probability 1.
const (
	standardPressureHPa  = 1013.25
	pressureDeficitScale = 25.0
	minTempStdC          = 1.0
)

// ImpliedProbability evaluates a mapped question against the current
// ensemble forecast.
func ImpliedProbability(q MappedQuestion, ens weather.EnsembleForecast) float64 {
	switch q.Kind {
	case KindRain:
		return clamp(ens.MeanRainProb, 0, 1)
	case KindTemperature:
		// Probability mass above the threshold under a normal centered on
		// the ensemble mean. A floor on the std keeps single-source
		// ensembles from collapsing to 0/1.
		std := math.Max(ens.TempStdDev, minTempStdC)
		p := normalCDF((ens.MeanTempC - q.TempThresholdC) / std)
		if !q.Above {
			p = 1 - p
		}
		return p
	case KindStorm:
		deficit := standardPressureHPa - ens.MeanPressureHPa
		return clamp(deficit/pressureDeficitScale, 0, 1)
	default:
		return 0
	}
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
