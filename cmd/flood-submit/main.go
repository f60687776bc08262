// flood-submit queues satellite extraction jobs for every disaggregated
// event in a batch file. Each line of the file is one sub-event key
// (MM-<id>-<adm1_code>). Listens for SIGINT so a half-submitted batch can
// be stopped without losing in-flight requests.
package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cskoven/go-flood-panel/internal/config"
	"github.com/cskoven/go-flood-panel/internal/floodmask"
	"github.com/cskoven/go-flood-panel/internal/logging"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) != 2 {
		logging.Fatalf("usage: flood-submit <batch-file>")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	jobs, err := readBatch(os.Args[1])
	if err != nil {
		logging.Fatalf("Failed to read batch file: %v", err)
	}
	slog.Info("batch loaded", "jobs", len(jobs), "queue", cfg.Queue.BaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("interrupted, stopping submission")
		cancel()
	}()

	queue := floodmask.NewRemoteQueue(cfg.Queue.BaseURL)
	submitter := floodmask.NewSubmitter(queue, cfg.Queue.Threshold, cfg.Queue.Backoff, cfg.Queue.Workers, cfg.Queue.BufferSize)
	submitter.Start(ctx)

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		submitter.Enqueue(job)
	}
	submitter.Stop()

	slog.Info("submission complete")
}

// readBatch parses one job per line. Keys are MM-<id>-<adm1_code>; the
// id itself contains dashes, so the code is split off the tail and the
// year off the id's last segment.
func readBatch(path string) ([]floodmask.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var jobs []floodmask.Job
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		job, ok := parseKey(line)
		if !ok {
			slog.Warn("skipping malformed batch line", "line", line)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, scanner.Err()
}

func parseKey(key string) (floodmask.Job, bool) {
	parts := strings.Split(key, "-")
	if len(parts) < 4 {
		return floodmask.Job{}, false
	}
	adm1, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return floodmask.Job{}, false
	}
	// MM-YYYY-NNNN-<adm1>: the year sits right after the month.
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1900 {
		return floodmask.Job{}, false
	}
	return floodmask.Job{Key: key, Adm1Code: adm1, Year: year}, true
}
