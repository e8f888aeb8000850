package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsCreatedTotal, jobsFinishedTotal, chatTurnsTotal, filesWrittenTotal) }

var (
	jobsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_created_total",
			Help: "Total number of generation jobs created.",
		},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_finished_total",
			Help: "Total number of generation jobs finished, labeled by terminal status.",
		},
		[]string{"status"}, // 'done', 'error'
	)

	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns by outcome (updated, plain, unavailable, failed).",
		},
		[]string{"outcome"},
	)

	filesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_files_written_total",
			Help: "Files written into job directories by mode (create, chat, editor).",
		},
		[]string{"mode"},
	)
)

func IncJobCreated() { jobsCreatedTotal.Inc() }

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncChatTurn(outcome string) {
	chatTurnsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddFilesWritten(mode string, n int) {
	if n > 0 {
		filesWrittenTotal.WithLabelValues(norm(mode)).Add(float64(n))
	}
}

var jobsByStatus = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "jobs_current",
		Help: "Jobs held in memory, by status.",
	},
	[]string{"status"},
)

func init() { register(jobsByStatus) }

func SetJobsByStatus(status string, n int) {
	jobsByStatus.WithLabelValues(norm(status)).Set(float64(n))
}
