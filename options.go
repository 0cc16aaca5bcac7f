package nosqlbench

import (
	"math"
	"strconv"
	"strings"
	"time"

	g "github.com/hhkbp2/nosqlbench/generator"
)

type BenchmarkPolicy uint8

const (
	BenchmarkNoLimit BenchmarkPolicy = iota
	BenchmarkTimeLimit
	BenchmarkThreadLimit
)

func (self BenchmarkPolicy) String() string {
	switch self {
	case BenchmarkNoLimit:
		return "no_limit"
	case BenchmarkTimeLimit:
		return "time_limit"
	case BenchmarkThreadLimit:
		return "thread_limit"
	default:
		return "unknown"
	}
}

type ThreadsPolicy uint8

const (
	ThreadsAtOnce ThreadsPolicy = iota
	ThreadsInterval
)

func (self ThreadsPolicy) String() string {
	switch self {
	case ThreadsAtOnce:
		return "at_once"
	case ThreadsInterval:
		return "interval"
	default:
		return "unknown"
	}
}

var (
	benchmarkPolicies = map[string]BenchmarkPolicy{
		"no_limit":     BenchmarkNoLimit,
		"time_limit":   BenchmarkTimeLimit,
		"thread_limit": BenchmarkThreadLimit,
	}
	threadsPolicies = map[string]ThreadsPolicy{
		"at_once":  ThreadsAtOnce,
		"interval": ThreadsInterval,
	}
)

// Options is the validated form of the benchmark properties.
type Options struct {
	Benchmark      BenchmarkPolicy
	TimeLimit      int
	Tick           time.Duration
	ReportInterval int
	Report         string
	CSVFile        string
	Percentiles    []float64
	HdrOutput      string
	HdrMax         int64
	HdrSig         int
	MetricsAddr    string

	RequestCount      int
	RequestBatchCount int
	HistoryPerBatch   int
	RPS               int
	WarmupRPS         int

	ThreadsPolicy    ThreadsPolicy
	ThreadsStart     int
	ThreadsMax       int
	ThreadsIncrement int
	ThreadsInterval  int

	DB             string
	Host           string
	Port           int
	ConnectTimeout time.Duration
	ValueSize      int

	Key                 string
	KeyDistribution     string
	KeyDistributionIter int
	ReplacePercent      int
	UpdatePercent       int
	DeletePercent       int
	SelectPercent       int

	// The raw properties, for drivers with their own settings.
	Properties Properties
}

type optionParser struct {
	props Properties
	err   error
}

func (self *optionParser) int(name, defaultValue string) int {
	if self.err != nil {
		return 0
	}
	s := self.props.GetDefault(name, defaultValue)
	v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		self.err = NewErrorf("invalid value for %s: %q", name, s)
		return 0
	}
	return int(v)
}

func (self *optionParser) duration(name, defaultValue string) time.Duration {
	if self.err != nil {
		return 0
	}
	s := self.props.GetDefault(name, defaultValue)
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		self.err = NewErrorf("invalid value for %s: %q", name, s)
		return 0
	}
	return v
}

func (self *optionParser) percentiles(name, defaultValue string) []float64 {
	if self.err != nil {
		return nil
	}
	s := self.props.GetDefault(name, defaultValue)
	parts := strings.Split(s, ",")
	ret := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0.0 || v > 1.0 {
			self.err = NewErrorf("invalid percentile in %s: %q", name, p)
			return nil
		}
		ret = append(ret, v)
	}
	return ret
}

// NewOptions builds Options out of props, falling back to the default of
// every property that is not set. Any invalid or inconsistent setting is
// reported as an error.
func NewOptions(props Properties) (*Options, error) {
	p := &optionParser{props: props}
	o := &Options{
		TimeLimit:      p.int(PropertyTimeLimit, PropertyTimeLimitDefault),
		Tick:           p.duration(PropertyTick, PropertyTickDefault),
		ReportInterval: p.int(PropertyReportInterval, PropertyReportIntervalDefault),
		Report:         props.GetDefault(PropertyReport, PropertyReportDefault),
		CSVFile:        props.GetDefault(PropertyCSVFile, PropertyCSVFileDefault),
		Percentiles:    p.percentiles(PropertyPercentiles, PropertyPercentilesDefault),
		HdrOutput:      props.GetDefault(PropertyHdrOutput, PropertyHdrOutputDefault),
		HdrMax:         int64(p.int(PropertyHdrMax, PropertyHdrMaxDefault)),
		HdrSig:         p.int(PropertyHdrSig, PropertyHdrSigDefault),
		MetricsAddr:    props.GetDefault(PropertyMetricsAddr, PropertyMetricsAddrDefault),

		RequestCount:      p.int(PropertyRequestCount, PropertyRequestCountDefault),
		RequestBatchCount: p.int(PropertyRequestBatchCount, PropertyRequestBatchCountDefault),
		HistoryPerBatch:   p.int(PropertyHistoryPerBatch, PropertyHistoryPerBatchDefault),
		RPS:               p.int(PropertyRPS, PropertyRPSDefault),
		WarmupRPS:         p.int(PropertyWarmupRPS, PropertyWarmupRPSDefault),

		ThreadsStart:     p.int(PropertyThreadsStart, PropertyThreadsStartDefault),
		ThreadsMax:       p.int(PropertyThreadsMax, PropertyThreadsMaxDefault),
		ThreadsIncrement: p.int(PropertyThreadsIncrement, PropertyThreadsIncrementDefault),
		ThreadsInterval:  p.int(PropertyThreadsInterval, PropertyThreadsIntervalDefault),

		DB:             props.GetDefault(PropertyDB, PropertyDBDefault),
		Host:           props.GetDefault(PropertyHost, PropertyHostDefault),
		Port:           p.int(PropertyPort, PropertyPortDefault),
		ConnectTimeout: p.duration(PropertyConnectTimeout, PropertyConnectTimeoutDefault),
		ValueSize:      p.int(PropertyValueSize, PropertyValueSizeDefault),

		Key:                 props.GetDefault(PropertyKey, PropertyKeyDefault),
		KeyDistribution:     props.GetDefault(PropertyKeyDistribution, PropertyKeyDistributionDefault),
		KeyDistributionIter: p.int(PropertyKeyDistributionIterations, PropertyKeyDistributionIterationsDefault),
		ReplacePercent:      p.int(PropertyReplacePercent, PropertyReplacePercentDefault),
		UpdatePercent:       p.int(PropertyUpdatePercent, PropertyUpdatePercentDefault),
		DeletePercent:       p.int(PropertyDeletePercent, PropertyDeletePercentDefault),
		SelectPercent:       p.int(PropertySelectPercent, PropertySelectPercentDefault),

		Properties: props,
	}
	if p.err != nil {
		return nil, p.err
	}

	name := props.GetDefault(PropertyBenchmarkPolicy, PropertyBenchmarkPolicyDefault)
	benchmark, ok := benchmarkPolicies[name]
	if !ok {
		return nil, NewErrorf("unknown benchmark policy: %s", name)
	}
	o.Benchmark = benchmark
	name = props.GetDefault(PropertyThreadsPolicy, PropertyThreadsPolicyDefault)
	threads, ok := threadsPolicies[name]
	if !ok {
		return nil, NewErrorf("unknown threads policy: %s", name)
	}
	o.ThreadsPolicy = threads

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the cross field constraints of the options.
func (self *Options) Validate() error {
	if self.Benchmark == BenchmarkTimeLimit && self.TimeLimit <= 0 {
		return NewErrorf("%s must be positive with the time_limit policy", PropertyTimeLimit)
	}
	if self.Tick <= 0 {
		return NewErrorf("%s must be positive", PropertyTick)
	}
	if self.ReportInterval <= 0 {
		return NewErrorf("%s must be positive", PropertyReportInterval)
	}
	if self.RequestCount <= 0 {
		return NewErrorf("%s must be positive", PropertyRequestCount)
	}
	if int64(self.RequestCount) > math.MaxUint32 {
		return NewErrorf("%s must not exceed %d", PropertyRequestCount, uint64(math.MaxUint32))
	}
	if self.RequestBatchCount < 1 {
		return NewErrorf("%s must be at least 1", PropertyRequestBatchCount)
	}
	if self.HistoryPerBatch < 1 {
		return NewErrorf("%s must be at least 1", PropertyHistoryPerBatch)
	}
	if self.RPS < 0 {
		return NewErrorf("%s must not be negative", PropertyRPS)
	}
	if self.WarmupRPS < 0 {
		return NewErrorf("%s must not be negative", PropertyWarmupRPS)
	}
	if self.ThreadsMax <= 0 {
		return NewErrorf("%s must be positive", PropertyThreadsMax)
	}
	if self.ThreadsPolicy == ThreadsInterval {
		if self.ThreadsStart <= 0 || self.ThreadsStart > self.ThreadsMax {
			return NewErrorf("%s must be in [1, %s]", PropertyThreadsStart, PropertyThreadsMax)
		}
		if self.ThreadsIncrement <= 0 {
			return NewErrorf("%s must be positive", PropertyThreadsIncrement)
		}
		if self.ThreadsInterval <= 0 {
			return NewErrorf("%s must be positive", PropertyThreadsInterval)
		}
	}
	if self.ValueSize <= 0 {
		return NewErrorf("%s must be positive", PropertyValueSize)
	}
	if self.Port <= 0 || self.Port > 65535 {
		return NewErrorf("invalid %s: %d", PropertyPort, self.Port)
	}
	if self.HdrMax <= 0 || self.HdrSig < 1 || self.HdrSig > 5 {
		return NewErrorf("invalid hdr histogram bounds: max=%d sig=%d", self.HdrMax, self.HdrSig)
	}
	for _, v := range []int{self.ReplacePercent, self.UpdatePercent, self.DeletePercent, self.SelectPercent} {
		if v < 0 || v > 100 {
			return NewErrorf("request percentage out of range: %d", v)
		}
	}
	sum := self.ReplacePercent + self.UpdatePercent + self.DeletePercent + self.SelectPercent
	if sum != 100 {
		return NewErrorf("request percentages sum to %d, expected 100", sum)
	}
	if _, ok := Drivers[self.DB]; !ok {
		return NewErrorf("%w: %s", ErrUnknownDriver, self.DB)
	}
	if _, ok := KeyTypes[self.Key]; !ok {
		return NewErrorf("unknown key type: %s", self.Key)
	}
	if _, ok := g.Distributions[self.KeyDistribution]; !ok {
		return NewErrorf("unknown key distribution: %s", self.KeyDistribution)
	}
	if _, ok := Reporters[self.Report]; !ok {
		return NewErrorf("unknown report: %s", self.Report)
	}
	return nil
}

// Address returns the "host:port" form of the target server.
func (self *Options) Address() string {
	return self.Host + ":" + strconv.Itoa(self.Port)
}

// InitialThreads returns how many workers the engine starts with.
func (self *Options) InitialThreads() int {
	if self.ThreadsPolicy == ThreadsAtOnce {
		return self.ThreadsMax
	}
	return self.ThreadsStart
}
