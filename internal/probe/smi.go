package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jaypipes/ghw"
)

// smiBackend queries NVIDIA accelerators through nvidia-smi. When the binary
// is missing it consults ghw to distinguish "no accelerator installed" from
// "accelerator present but unqueryable"; both degrade to the host sentinel.
type smiBackend struct{}

func (b *smiBackend) Query(ctx context.Context) ([]DeviceMemory, error) {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		if hasGraphicsCard() {
			return nil, fmt.Errorf("accelerator present but nvidia-smi unavailable: %w", err)
		}
		return nil, fmt.Errorf("no accelerator detected: %w", err)
	}

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,name,memory.total,memory.used,memory.free",
		"--format=csv,noheader,nounits")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("nvidia-smi: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return parseSMIOutput(stdout.String())
}

// parseSMIOutput parses csv,noheader,nounits query-gpu output. Memory values
// are reported in MiB.
func parseSMIOutput(out string) ([]DeviceMemory, error) {
	var devices []DeviceMemory
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 5 {
			return nil, fmt.Errorf("malformed nvidia-smi line: %q", line)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("device index: %w", err)
		}
		name := strings.TrimSpace(parts[1])
		totalMB, err := parseMiB(parts[2])
		if err != nil {
			return nil, err
		}
		usedMB, err := parseMiB(parts[3])
		if err != nil {
			return nil, err
		}
		freeMB, err := parseMiB(parts[4])
		if err != nil {
			return nil, err
		}
		devices = append(devices, DeviceMemory{
			Index:      idx,
			Name:       name,
			TotalBytes: totalMB * 1024 * 1024,
			UsedBytes:  usedMB * 1024 * 1024,
			FreeBytes:  freeMB * 1024 * 1024,
		})
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("nvidia-smi reported no devices")
	}
	return devices, nil
}

func parseMiB(field string) (uint64, error) {
	s := strings.TrimSpace(field)
	if s == "[N/A]" || s == "N/A" {
		return 0, fmt.Errorf("memory value not reported")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("memory value %q: %w", s, err)
	}
	return v, nil
}

func hasGraphicsCard() bool {
	g, err := ghw.GPU()
	if err != nil {
		return false
	}
	return len(g.GraphicsCards) > 0
}
