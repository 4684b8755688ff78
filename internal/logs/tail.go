package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"docdesk/internal/audit"
)

// TailOptions selects which action log entries to return.
type TailOptions struct {
	// Offset < 0 returns the last Limit entries; otherwise reading resumes at
	// this byte offset.
	Offset int64
	Limit  int
	// DocID restricts results to one document.
	DocID  string
	Follow bool
	Wait   time.Duration
}

// TailResult holds decoded entries and the offset to resume from.
type TailResult struct {
	Entries []audit.Line
	Offset  int64
	Skipped int
}

// Tail reads entries from the action log at path. A missing file yields an
// empty result.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat action log: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("action log %q is a directory", path)
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	filter := strings.TrimSpace(opts.DocID)

	if opts.Offset < 0 {
		result, err = readLast(path, opts.Limit, filter)
		if err != nil {
			return result, err
		}
		if opts.Follow && opts.Wait > 0 && len(result.Entries) == 0 {
			return waitForEntries(ctx, path, result.Offset, filter, opts.Wait)
		}
		return result, nil
	}

	if opts.Offset > info.Size() {
		opts.Offset = info.Size()
	}
	result, err = readForward(path, opts.Offset, filter)
	if err != nil {
		return result, err
	}
	if opts.Follow && opts.Wait > 0 && len(result.Entries) == 0 {
		return waitForEntries(ctx, path, result.Offset, filter, opts.Wait)
	}
	return result, nil
}

// scan decodes every complete line from r, calling keep for matches.
func scan(r io.Reader, filter string, keep func(audit.Line)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	skipped := 0
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line audit.Line
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			skipped++
			continue
		}
		if filter != "" && line.DocID != filter {
			continue
		}
		keep(line)
	}
	if err := scanner.Err(); err != nil {
		return skipped, fmt.Errorf("read action log: %w", err)
	}
	return skipped, nil
}

func readLast(path string, limit int, filter string) (TailResult, error) {
	var result TailResult
	file, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("open action log: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return result, fmt.Errorf("seek action log: %w", err)
		}
		result.Offset = end
		return result, nil
	}

	ring := make([]audit.Line, limit)
	count, idx := 0, 0
	skipped, err := scan(file, filter, func(line audit.Line) {
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return result, err
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return result, fmt.Errorf("determine action log offset: %w", err)
	}

	entries := make([]audit.Line, count)
	if count == limit {
		for i := 0; i < count; i++ {
			entries[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(entries, ring[:count])
	}
	result.Entries = entries
	result.Offset = end
	result.Skipped = skipped
	return result, nil
}

func readForward(path string, offset int64, filter string) (TailResult, error) {
	result := TailResult{Offset: offset}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("open action log: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("seek action log: %w", err)
	}
	skipped, err := scan(file, filter, func(line audit.Line) {
		result.Entries = append(result.Entries, line)
	})
	if err != nil {
		return result, err
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return result, fmt.Errorf("determine action log offset: %w", err)
	}
	result.Offset = end
	result.Skipped = skipped
	return result, nil
}

func waitForEntries(ctx context.Context, path string, offset int64, filter string, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		result, err := readForward(path, offset, filter)
		if err != nil {
			return result, err
		}
		if len(result.Entries) > 0 || time.Now().After(deadline) {
			return result, nil
		}
		offset = result.Offset

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
