package store

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repohealth/schema"
)

const timeLayout = "2006-01-02 15:04:05"

// PrintStoreStatus prints report store status information.
func PrintStoreStatus(w io.Writer, status schema.StoreStatus) {
	_, _ = fmt.Fprintf(w, "Store Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Reports: %d\n", status.TotalReports)
	_, _ = fmt.Fprintf(w, "Snapshots: %d\n", status.TotalSnapshots)
	_, _ = fmt.Fprintf(w, "Sweep Runs: %d\n", status.TotalRuns)
	if status.TotalRuns > 0 {
		_, _ = fmt.Fprintf(w, "Last Run ID: %s\n", status.LastRunID)
		_, _ = fmt.Fprintf(w, "Last Run: %s (%s)\n", status.LastRunTime.Format(timeLayout), humanize.Time(status.LastRunTime))
	}
	if !status.LastCheckedTime.IsZero() {
		_, _ = fmt.Fprintf(w, "Last Checked: %s (%s)\n", status.LastCheckedTime.Format(timeLayout), humanize.Time(status.LastCheckedTime))
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	for _, table := range slices.Sorted(maps.Keys(status.TableSizes)) {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}

// PrintCacheStatus prints metadata cache status information.
func PrintCacheStatus(w io.Writer, status schema.CacheStatus) {
	_, _ = fmt.Fprintf(w, "Cache Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Entries: %d\n", status.TotalEntries)
	if status.TotalEntries > 0 {
		_, _ = fmt.Fprintf(w, "Last Entry: %s\n", status.LastEntryTime.Format(timeLayout))
		_, _ = fmt.Fprintf(w, "Oldest Entry: %s\n", status.OldestEntryTime.Format(timeLayout))
	}
	_, _ = fmt.Fprintf(w, "Table Size: %s\n", humanize.Bytes(uint64(max(status.TableSizeBytes, 0))))
}

// PrintFetchCacheStatus prints the usage of the working copy cache.
func PrintFetchCacheStatus(w io.Writer, status schema.FetchCacheStatus) {
	_, _ = fmt.Fprintf(w, "Fetch Cache: %s\n", status.Dir)
	_, _ = fmt.Fprintf(w, "Slots: %d\n", status.Slots)
	used := humanize.Bytes(uint64(max(status.TotalBytes, 0)))
	if status.MaxBytes > 0 {
		_, _ = fmt.Fprintf(w, "Size: %s of %s\n", used, humanize.Bytes(uint64(status.MaxBytes)))
		return
	}
	_, _ = fmt.Fprintf(w, "Size: %s\n", used)
}
