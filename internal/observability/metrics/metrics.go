package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "linesim_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	alarmRowsTotal *prometheus.CounterVec

	tagWritesTotal  *prometheus.CounterVec
	sinkErrorsTotal *prometheus.CounterVec

	alarmEventsTotal *prometheus.CounterVec
	activeAlarms     *prometheus.GaugeVec

	scenarioRunsTotal *prometheus.CounterVec
	scenarioLatency   *prometheus.HistogramVec

	loopErrorsTotal *prometheus.CounterVec

	productionRate  prometheus.Gauge
	totalProduction prometheus.Gauge
	effectiveness   *prometheus.GaugeVec
)

// Init registers simulator metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		alarmRowsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_rows_total",
				Help: "Alarm export rows by parse outcome",
			},
			[]string{"outcome"},
		)

		tagWritesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tag_writes_total",
				Help: "Live state tree writes by result",
			},
			[]string{"result"},
		)
		sinkErrorsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sink_errors_total",
				Help: "Tag sink failures by sink",
			},
			[]string{"sink"},
		)

		alarmEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Simulated alarm lifecycle events by type",
			},
			[]string{"event"},
		)
		activeAlarms = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alarms",
				Help: "Currently active simulated alarms by class",
			},
			[]string{"class"},
		)

		scenarioRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scenario_runs_total",
				Help: "Scenario runs by scenario and result",
			},
			[]string{"scenario", "result"},
		)
		scenarioLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "scenario_duration_seconds",
				Help:    "Scenario script duration in seconds",
				Buckets: []float64{0.1, 1, 5, 10, 15, 30, 60},
			},
			[]string{"scenario"},
		)

		loopErrorsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "loop_errors_total",
				Help: "Recovered simulation loop failures by process",
			},
			[]string{"process"},
		)

		productionRate = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "production_rate_cph",
			Help: "Simulated production rate in containers per hour",
		})
		totalProduction = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "production_total",
			Help: "Simulated containers produced since start",
		})
		effectiveness = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "effectiveness_percent",
				Help: "Availability, performance, quality and OEE in percent",
			},
			[]string{"component"},
		)

		prometheus.MustRegister(
			alarmRowsTotal,
			tagWritesTotal,
			sinkErrorsTotal,
			alarmEventsTotal,
			activeAlarms,
			scenarioRunsTotal,
			scenarioLatency,
			loopErrorsTotal,
			productionRate,
			totalProduction,
			effectiveness,
		)
	})
}

// ObserveAlarmParse records the outcome of one parse batch.
func ObserveAlarmParse(parsed, skipped, filtered, defaulted int) {
	if alarmRowsTotal == nil {
		return
	}
	alarmRowsTotal.WithLabelValues("parsed").Add(float64(parsed))
	alarmRowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	alarmRowsTotal.WithLabelValues("filtered").Add(float64(filtered))
	alarmRowsTotal.WithLabelValues("defaulted").Add(float64(defaulted))
}

// AddTagWrites counts applied tree writes.
func AddTagWrites(result string, count int) {
	if result == "" {
		result = resultSuccess
	}
	if tagWritesTotal != nil && count > 0 {
		tagWritesTotal.WithLabelValues(result).Add(float64(count))
	}
}

// IncSinkError counts a failed sink apply.
func IncSinkError(sink string) {
	if sink == "" {
		sink = "unknown"
	}
	if sinkErrorsTotal != nil {
		sinkErrorsTotal.WithLabelValues(sink).Inc()
	}
}

// IncAlarmEvent increments alarm lifecycle counters.
func IncAlarmEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alarmEventsTotal != nil {
		alarmEventsTotal.WithLabelValues(event).Inc()
	}
}

// SetActiveAlarms publishes the active alarm counters.
func SetActiveAlarms(total, warnings, faults int) {
	if activeAlarms == nil {
		return
	}
	activeAlarms.WithLabelValues("total").Set(float64(total))
	activeAlarms.WithLabelValues("warning").Set(float64(warnings))
	activeAlarms.WithLabelValues("fault").Set(float64(faults))
}

// ObserveScenario records one scenario run.
func ObserveScenario(scenario, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if scenarioRunsTotal != nil {
		scenarioRunsTotal.WithLabelValues(scenario, result).Inc()
	}
	if scenarioLatency != nil && result == resultSuccess {
		scenarioLatency.WithLabelValues(scenario).Observe(duration.Seconds())
	}
}

// IncLoopError counts a recovered loop failure.
func IncLoopError(process string) {
	if process == "" {
		process = "unknown"
	}
	if loopErrorsTotal != nil {
		loopErrorsTotal.WithLabelValues(process).Inc()
	}
}

// SetProduction publishes production gauges.
func SetProduction(rate int, total float64) {
	if productionRate != nil {
		productionRate.Set(float64(rate))
	}
	if totalProduction != nil {
		totalProduction.Set(total)
	}
}

// SetEffectiveness publishes OEE components in percent.
func SetEffectiveness(availability, performance, quality, oee float64) {
	if effectiveness == nil {
		return
	}
	effectiveness.WithLabelValues("availability").Set(availability)
	effectiveness.WithLabelValues("performance").Set(performance)
	effectiveness.WithLabelValues("quality").Set(quality)
	effectiveness.WithLabelValues("oee").Set(oee)
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
