// Package preflight verifies the environment before the daemon starts
// taking jobs: directories must be writable, the disk needs headroom for
// staging media, and the external tools have to be on PATH.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/NovoNihilo/clipforge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	if cfg.Workflow.MinFreeGiB > 0 {
		results = append(results, CheckDiskHeadroom(cfg.Paths.StagingDir, cfg.Workflow.MinFreeGiB))
	}
	results = append(results,
		CheckBinary("yt-dlp", cfg.Tools.YtDlpBinary),
		CheckBinary("whisperx", cfg.Tools.WhisperXBinary),
		CheckBinary("ffmpeg", cfg.Tools.FFmpegBinary),
	)
	return results
}

// Failures summarizes the failed checks from a run, or returns nil when
// everything passed.
func Failures(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("preflight checks failed: %s", strings.Join(failed, "; "))
}

// CheckDirectoryAccess verifies the directory exists and is read/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskHeadroom verifies the filesystem holding path has at least
// minFreeGiB available for staged media.
func CheckDiskHeadroom(path string, minFreeGiB int) Result {
	const name = "Disk headroom"

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeBytes := stat.Bavail * uint64(stat.Bsize)
	freeGiB := float64(freeBytes) / (1 << 30)
	if freeGiB < float64(minFreeGiB) {
		return Result{Name: name,
			Detail: fmt.Sprintf("%.1f GiB free on %s, need %d GiB", freeGiB, path, minFreeGiB)}
	}
	return Result{Name: name, Passed: true,
		Detail: fmt.Sprintf("%.1f GiB free on %s", freeGiB, path)}
}

// CheckBinary verifies the tool resolves on PATH (or points at a file).
func CheckBinary(name, command string) Result {
	if strings.TrimSpace(command) == "" {
		return Result{Name: name, Detail: "binary not configured"}
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found: %v", command, err)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}
