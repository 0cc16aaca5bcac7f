package nosqlbench

const (
	// Logging
	PropertyLogLevel        = "log.level"
	PropertyLogLevelDefault = "info"

	// Benchmark
	// One of "no_limit", "time_limit" or "thread_limit".
	PropertyBenchmarkPolicy        = "benchmark"
	PropertyBenchmarkPolicyDefault = "no_limit"
	// Number of ticks to run for with the "time_limit" policy.
	PropertyTimeLimit        = "time_limit"
	PropertyTimeLimitDefault = "0"
	// Length of one engine tick.
	PropertyTick        = "engine.tick"
	PropertyTickDefault = "1s"

	// Report
	// Emit a report every report_interval ticks.
	PropertyReportInterval        = "report_interval"
	PropertyReportIntervalDefault = "1"
	// The reporter to be used. "default" or "json".
	PropertyReport        = "report"
	PropertyReportDefault = "default"
	// If set, the time series is written there as CSV after the run.
	// strftime directives are expanded.
	PropertyCSVFile        = "csv_file"
	PropertyCSVFileDefault = ""
	// Percentiles printed with the final latency histogram.
	PropertyPercentiles        = "histogram.percentiles"
	PropertyPercentilesDefault = "0.5,0.9,0.99,0.999"
	// If set, the merged hdr histogram snapshot is written there as JSON.
	PropertyHdrOutput        = "hdr.output"
	PropertyHdrOutputDefault = ""
	// Upper bound of the hdr histogram in microseconds.
	PropertyHdrMax        = "hdr.max"
	PropertyHdrMaxDefault = "60000000"
	// Significant figures of the hdr histogram.
	PropertyHdrSig        = "hdr.sig"
	PropertyHdrSigDefault = "3"
	// If set, prometheus metrics are served on this address.
	PropertyMetricsAddr        = "metrics.addr"
	PropertyMetricsAddrDefault = ""

	// Requests
	// Number of requests in one workload pass.
	PropertyRequestCount        = "request_count"
	PropertyRequestCountDefault = "10000"
	// Requests sent back to back before one receive on the synchronous path.
	PropertyRequestBatchCount        = "request_batch_count"
	PropertyRequestBatchCountDefault = "1000"
	// Size of the sliding window in epochs.
	PropertyHistoryPerBatch        = "history_per_batch"
	PropertyHistoryPerBatchDefault = "16"
	// Target requests per second per connection, 0 is unthrottled.
	PropertyRPS        = "rps"
	PropertyRPSDefault = "0"
	// Insert rate of the warmup, 0 is unthrottled.
	PropertyWarmupRPS        = "warmup.rps"
	PropertyWarmupRPSDefault = "0"

	// Threads
	// One of "at_once" or "interval".
	PropertyThreadsPolicy           = "threads.policy"
	PropertyThreadsPolicyDefault    = "at_once"
	PropertyThreadsStart            = "threads.start"
	PropertyThreadsStartDefault     = "10"
	PropertyThreadsMax              = "threads.max"
	PropertyThreadsMaxDefault       = "10"
	PropertyThreadsIncrement        = "threads.increment"
	PropertyThreadsIncrementDefault = "1"
	PropertyThreadsInterval         = "threads.interval"
	PropertyThreadsIntervalDefault  = "1"

	// Database
	PropertyDB          = "db"
	PropertyDBDefault   = "basic"
	PropertyHost        = "host"
	PropertyHostDefault = "127.0.0.1"
	PropertyPort        = "port"
	PropertyPortDefault = "33013"
	// Connect timeout of a single worker.
	PropertyConnectTimeout        = "connect_timeout"
	PropertyConnectTimeoutDefault = "60s"
	PropertyValueSize             = "value_size"
	PropertyValueSizeDefault      = "16"

	// Keys
	// One of "string", "u32" or "u64".
	PropertyKey        = "key"
	PropertyKeyDefault = "string"
	// Name of the key distribution, see generator.Distributions.
	PropertyKeyDistribution                  = "key_dist"
	PropertyKeyDistributionDefault           = "uniform"
	PropertyKeyDistributionIterations        = "key_dist_iter"
	PropertyKeyDistributionIterationsDefault = "4"

	// Request distribution, in percent, must sum to 100.
	PropertyReplacePercent        = "dist.replace"
	PropertyReplacePercentDefault = "40"
	PropertyUpdatePercent         = "dist.update"
	PropertyUpdatePercentDefault  = "10"
	PropertyDeletePercent         = "dist.delete"
	PropertyDeletePercentDefault  = "10"
	PropertySelectPercent         = "dist.select"
	PropertySelectPercentDefault  = "40"

	// BasicDB
	ConfigBasicDBVerbose        = "basicdb.verbose"
	ConfigBasicDBVerboseDefault = "false"
	ConfigSimulateDelay         = "basicdb.simulatedelay"
	ConfigSimulateDelayDefault  = "0"
	ConfigRandomizeDelay        = "basicdb.randomizedelay"
	ConfigRandomizeDelayDefault = "true"
	ConfigMissRatio             = "basicdb.missratio"
	ConfigMissRatioDefault      = "0"
)
