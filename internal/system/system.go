package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// InitResourceLimits raises the open-file limit. Every frame fetch of a
// preload cycle runs at once, so the default soft limit is too low on macOS.
func InitResourceLimits(logger *zap.Logger) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		logger.Warn("cannot read open-file limit", zap.Error(err))
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		logger.Warn("cannot raise open-file limit", zap.Error(err))
		return
	}
	logger.Debug("open-file limit raised", zap.Uint64("limit", uint64(rLimit.Cur)))
}

// ProbeDuration returns the duration in seconds of a media file via ffprobe.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}

	return duration, nil
}

// GetBestH264Encoder returns the hardware encoder when ffmpeg has one.
func GetBestH264Encoder() string {
	// Priority: VideoToolbox (macOS), NVENC (NVIDIA), then libx264.
	out, err := exec.Command("ffmpeg", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}

// DefaultQuality picks a quality value matching the encoder's scale.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}

// MemoryStats is reported by the health endpoint.
type MemoryStats struct {
	ProcessRSS      uint64  `json:"process_rss"`
	SystemTotal     uint64  `json:"system_total"`
	SystemUsedPct   float64 `json:"system_used_percent"`
	SystemAvailable uint64  `json:"system_available"`
}

// ReadMemoryStats samples process and host memory.
func ReadMemoryStats(ctx context.Context) (MemoryStats, error) {
	var stats MemoryStats

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("virtual memory: %w", err)
	}
	stats.SystemTotal = vm.Total
	stats.SystemUsedPct = vm.UsedPercent
	stats.SystemAvailable = vm.Available

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return stats, fmt.Errorf("process: %w", err)
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("process memory: %w", err)
	}
	stats.ProcessRSS = info.RSS

	return stats, nil
}
