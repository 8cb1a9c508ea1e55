package agent

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// costEntry is one line of the JSONL cost log
type costEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	DedupKey     string    `json:"dedup_key"`
	EventKey     string    `json:"event_key"`
	CostUSD      float64   `json:"cost_usd"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
}

// costLog appends per-run cost entries to a JSONL file and keeps the
// running total in memory for budget checks. Existing entries are summed
// at open so the budget covers the whole file, not just this process.
type costLog struct {
	mu    sync.Mutex
	path  string
	total float64
}

func openCostLog(path string) (*costLog, error) {
	c := &costLog{path: path}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, goerr.Wrap(err, "failed to open cost log for scan")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry costEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// A torn last line from a crashed process is not worth
			// refusing to start over
			continue
		}
		c.total += entry.CostUSD
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to scan cost log")
	}

	return c, nil
}

// Total returns the cumulative recorded cost in USD
func (c *costLog) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Append writes one entry and updates the running total
func (c *costLog) Append(entry costEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return goerr.Wrap(err, "failed to encode cost entry")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return goerr.Wrap(err, "failed to open cost log for append")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return goerr.Wrap(err, "failed to write cost entry")
	}

	c.total += entry.CostUSD
	return nil
}
