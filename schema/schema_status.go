package schema

import "time"

// CacheStatus represents the status of the metadata cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// StoreStatus represents the status of the report store.
type StoreStatus struct {
	Backend         string           `json:"backend"`
	Connected       bool             `json:"connected"`
	TotalReports    int              `json:"total_reports"`
	TotalSnapshots  int              `json:"total_snapshots"`
	TotalRuns       int              `json:"total_runs"`
	LastRunID       string           `json:"last_run_id"`
	LastRunTime     time.Time        `json:"last_run_time"`
	LastCheckedTime time.Time        `json:"last_checked_time"`
	TableSizes      map[string]int64 `json:"table_sizes"`
}

// SweepRunRecord represents a row from the repohealth_runs table.
type SweepRunRecord struct {
	RunID        string
	StartTime    time.Time
	EndTime      *time.Time
	DurationMs   *int64
	Total        int32
	Done         int32
	Archived     int32
	Failed       int32
	Pending      int32
	ConfigParams *string
}

// FetchCacheStatus represents the state of the on-disk fetch cache.
type FetchCacheStatus struct {
	Dir        string `json:"dir"`
	Slots      int    `json:"slots"`
	TotalBytes int64  `json:"total_bytes"`
	MaxBytes   int64  `json:"max_bytes"`
}
