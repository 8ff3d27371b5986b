package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/marketsim/marketsim/internal/config"
	"github.com/marketsim/marketsim/internal/scenario"
)

// savedRunConfig mirrors the payload internal/sim.writeRunConfig writes
// to config.json at the end of every run.
type savedRunConfig struct {
	Config   *config.Config   `json:"config"`
	Scenario *scenario.Config `json:"scenario"`
}

func loadRunConfig(runDir string) (*savedRunConfig, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "config.json"))
	if err != nil {
		return nil, err
	}
	var saved savedRunConfig
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("unmarshal config.json: %w", err)
	}
	return &saved, nil
}

// hashRunLogs hashes every agent-*.jsonl file in runDir, in numeric
// agent-ID order, the same way internal/sim hashes a run's own logs —
// so a target hash and a replay hash are directly comparable.
func hashRunLogs(runDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(runDir, "agent-*.jsonl"))
	if err != nil {
		return "", err
	}
	sort.Slice(matches, func(i, j int) bool {
		return agentIDFromPath(matches[i]) < agentIDFromPath(matches[j])
	})

	h := sha256.New()
	for _, p := range matches {
		f, err := os.Open(p)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", err
		}
		f.Close()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func agentIDFromPath(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	name = strings.TrimPrefix(name, "agent-")
	id, err := strconv.Atoi(name)
	if err != nil {
		return -1
	}
	return id
}
