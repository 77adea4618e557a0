package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// Memory budget assumed for one concurrent segment (decoded frame, styled
// copy, encoder buffers).
const perWorkerMemory = 256 << 20

// InitResourceLimits пытается увеличить лимит открытых файлов:
// каждый запуск ffmpeg держит несколько пайпов
func InitResourceLimits(log *zap.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("get open-file limit", zap.Error(err))
		return
	}

	// Попробуем поставить 2048 или максимум, разрешенный системой
	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("set open-file limit", zap.Error(err))
		return
	}
	log.Debug("open-file limit raised", zap.Uint64("limit", uint64(rLimit.Cur)))
}

// CheckFFmpeg проверяет, что ffmpeg и ffprobe доступны в PATH
func CheckFFmpeg() error {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", bin, err)
		}
	}
	return nil
}

// VideoInfo is the subset of ffprobe output the pipeline needs.
type VideoInfo struct {
	Width    int
	Height   int
	Duration time.Duration
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeVideo reads the dimensions and duration of the first video stream.
func ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height,duration:format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (VideoInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var info VideoInfo
	found := false
	for _, s := range probe.Streams {
		if s.CodecType != "" && s.CodecType != "video" {
			continue
		}
		info.Width, info.Height = s.Width, s.Height
		info.Duration = parseSeconds(s.Duration)
		found = true
		break
	}
	if !found {
		return VideoInfo{}, errors.New("no video stream")
	}
	if info.Duration <= 0 {
		info.Duration = parseSeconds(probe.Format.Duration)
	}
	if info.Duration <= 0 {
		return VideoInfo{}, errors.New("unknown duration")
	}
	return info, nil
}

func parseSeconds(v string) time.Duration {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// DefaultWorkers sizes the segment worker pool: logical CPUs, capped by
// available memory.
func DefaultWorkers() int {
	workers, err := cpu.Counts(true)
	if err != nil || workers < 1 {
		workers = runtime.NumCPU()
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		if byMem := int(vm.Available / perWorkerMemory); byMem < workers {
			workers = byMem
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
