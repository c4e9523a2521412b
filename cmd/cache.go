package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repohealth/internal/store"
	"github.com/spf13/cobra"
)

// cacheCmd focused on fetch cache management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local clone cache and the metadata cache",
	Long: `Manage the caches that keep sweeps cheap.

The fetch cache holds one git clone per repository under --cache-dir so later
sweeps only need an incremental fetch. The metadata cache keeps GitHub API
responses for --metadata-cache-ttl.

Subcommands:
  status - Show cache usage
  evict  - Remove expired clones, then least recently used ones over budget
  clear  - Remove all cached metadata

Examples:
  # Check how much disk the clones use
  repohealth cache status

  # Reclaim clones unused for three days
  repohealth cache evict --cache-ttl 3d`,
}

// cacheStatusCmd shows cache usage.
var cacheStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display fetch cache and metadata cache usage",
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, locker, err := newFetcher(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = locker.Close() }()
		store.PrintFetchCacheStatus(os.Stdout, f.Status())

		status, err := store.Manager.GetCacheStore().GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get metadata cache status: %w", err)
		}
		fmt.Println()
		store.PrintCacheStatus(os.Stdout, status)
		return nil
	},
}

// cacheEvictCmd reclaims fetch cache slots.
var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Remove expired and least recently used clones",
	Long: `Reclaim disk space in the fetch cache.

Clones unused for longer than --cache-ttl are removed first; then the least
recently used clones are removed until the cache fits --cache-max-size.
Clones locked by a running job are skipped.

Examples:
  repohealth cache evict --cache-max-size 5GB`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, locker, err := newFetcher(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = locker.Close() }()

		before := f.Status()
		n, err := f.Evict(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to evict fetch cache: %w", err)
		}
		after := f.Status()
		fmt.Printf("Evicted %d clones, reclaimed %s.\n", n, humanize.Bytes(uint64(max(before.TotalBytes-after.TotalBytes, 0))))
		return nil
	},
}

// cacheClearCmd clears the metadata cache.
var cacheClearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Remove all cached repository metadata",
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := store.ClearCache(cmd.Context(), cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
			return fmt.Errorf("failed to clear metadata cache: %w", err)
		}
		fmt.Println("Metadata cache cleared successfully.")
		return nil
	},
}
