package messaging

import "time"

// WorkerHost is one (worker, reporting host) pair in a liveness report.
type WorkerHost struct {
	Worker string `json:"worker"`
	Host   string `json:"host"`
}

// WorkerOnlineEvent is a stratum server's full liveness report for one
// mining address. Each report replaces the previous one; workers absent
// from the latest report are considered offline once the stored copy's TTL
// lapses.
type WorkerOnlineEvent struct {
	Address    string       `json:"address"`
	Workers    []WorkerHost `json:"workers"`
	ReportedAt time.Time    `json:"reported_at"`
}
