// Package main provides a performance benchmarking tool for the repohealth CLI.
// It measures sweep times over a registry with and without a warm fetch cache,
// running each phase multiple times, treating the first successful cached run as cold
// and averaging the rest as warm, and writes the results as CSV.
//
// Prerequisites:
// - repohealth binary installed and available in PATH
// - A registry data file whose repositories are reachable from this machine
//
// Usage: go run benchmark/main.go [registry]
//
//	registry: Path or URL of the repository data file
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/huangsam/repohealth/schema"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Workers     int
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Registry    string
	Timeout     time.Duration
	Workers     []int
	NoCacheRuns int
	CacheRuns   int
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [registry]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		Registry:    os.Args[1],
		Timeout:     10 * time.Minute,
		Workers:     []int{1, 4, 8},
		NoCacheRuns: 2,
		CacheRuns:   4,
	}

	if _, err := exec.LookPath("repohealth"); err != nil {
		fmt.Printf("Prerequisites check failed: repohealth binary not found in PATH\n")
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Benchmark complete\n")
	for _, r := range results {
		fmt.Printf("  %2d workers: No-cache: %s, Cold: %s, Warm: %s\n", r.Workers, r.NoCacheTime, r.ColdTime, r.WarmTime)
	}
}

// runBenchmarks sweeps the registry once per worker count and phase.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %s, %v timeout, no-cache: %d runs, cache: %d runs\n",
		config.Registry, config.Timeout, config.NoCacheRuns, config.CacheRuns)

	for _, workers := range config.Workers {
		fmt.Printf("Benchmarking %d workers\n", workers)

		// Phase 1: every run clones into a fresh cache directory
		var noCache []float64
		for range config.NoCacheRuns {
			dir, err := os.MkdirTemp("", "repohealth-bench-*")
			if err != nil {
				fmt.Printf("Warning: %v\n", err)
				continue
			}
			if t, ok := runSweep(config, dir, workers); ok {
				noCache = append(noCache, t)
			}
			_ = os.RemoveAll(dir)
		}

		// Phase 2: runs share one cache directory, so only the first one clones
		dir, err := os.MkdirTemp("", "repohealth-bench-*")
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
			continue
		}
		var cached []float64
		for range config.CacheRuns {
			if t, ok := runSweep(config, dir, workers); ok {
				cached = append(cached, t)
			}
		}
		_ = os.RemoveAll(dir)

		result := BenchmarkResult{Workers: workers, NoCacheTime: average(noCache), ColdTime: "TIMEOUT", WarmTime: "TIMEOUT"}
		if len(cached) > 0 {
			result.ColdTime = fmt.Sprintf("%.3fs", cached[0])
			result.WarmTime = average(cached[1:])
		}
		fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", result.NoCacheTime, result.ColdTime, result.WarmTime)
		results = append(results, result)
	}

	return results
}

// runSweep runs one sweep against the given fetch cache directory and reports its duration.
// A run counts only when every repository finished without failing.
func runSweep(config BenchmarkConfig, cacheDir string, workers int) (float64, bool) {
	cmd := exec.Command("repohealth", "sweep",
		"--registry", config.Registry,
		"--workers", strconv.Itoa(workers),
		"--timeout", config.Timeout.String(),
		"--cache-dir", filepath.Join(cacheDir, "repos"),
		"--store-backend", string(schema.NoneBackend),
		"--output", string(schema.JSONOut),
		"--log-level", "error",
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return 0, false
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return 0, false
		}
	case <-time.After(config.Timeout):
		_ = cmd.Process.Kill()
		<-done
		return 0, false
	}
	elapsed := time.Since(start).Seconds()

	var out struct {
		Summary schema.SweepSummary `json:"summary"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, false
	}
	if out.Summary.Failed > 0 || out.Summary.Pending > 0 {
		fmt.Printf("  run had %d failed and %d pending repositories\n", out.Summary.Failed, out.Summary.Pending)
		return 0, false
	}
	return elapsed, true
}

func average(times []float64) string {
	if len(times) == 0 {
		return "TIMEOUT"
	}
	var sum float64
	for _, t := range times {
		sum += t
	}
	return fmt.Sprintf("%.3fs", sum/float64(len(times)))
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("repohealth_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"workers", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{strconv.Itoa(r.Workers), r.NoCacheTime, r.ColdTime, r.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}
