package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FetchTotal counts finished status fetches by trigger and outcome.
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterywidget_fetch_total",
			Help: "Total number of battery status fetches",
		},
		[]string{"source", "result"},
	)

	// FetchCoalescedTotal counts refreshes dropped because a fetch was
	// already in flight for the instance.
	FetchCoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterywidget_fetch_coalesced_total",
			Help: "Refresh requests suppressed by an outstanding fetch",
		},
		[]string{"source"},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batterywidget_fetch_duration_seconds",
			Help:    "Latency of battery status fetches",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// RenderTotal counts display states handed to the renderer.
	RenderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterywidget_render_total",
			Help: "Display states rendered",
		},
		[]string{"kind"},
	)

	// LiveSchedules tracks armed refresh schedules.
	LiveSchedules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "batterywidget_live_schedules",
			Help: "Number of armed refresh schedules",
		},
	)

	// BatteryPercentage is the last reported charge per instance.
	BatteryPercentage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterywidget_battery_percentage",
			Help: "Last reported charge level of the tracked battery",
		},
		[]string{"instance", "battery_id"},
	)
)

func init() {
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(FetchCoalescedTotal)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(RenderTotal)
	prometheus.MustRegister(LiveSchedules)
	prometheus.MustRegister(BatteryPercentage)
}
