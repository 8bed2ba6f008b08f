package usecase

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"CommitteeHarvester/internal/domain"
)

// LoadWorklist reads the line-delimited JSON worklist snapshot. An unreadable
// file is the one startup condition the pipeline treats as fatal. A line that
// is not valid JSON is an error too: a truncated worklist should stop the run
// before it silently harvests a partial directory.
func LoadWorklist(path string) ([]domain.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open worklist %s: %w", path, err)
	}
	defer f.Close()

	var profiles []domain.Profile
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var profile domain.Profile
		if err := json.Unmarshal([]byte(text), &profile); err != nil {
			return nil, fmt.Errorf("worklist %s line %d: %w", path, line, err)
		}
		profiles = append(profiles, profile)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read worklist %s: %w", path, err)
	}

	return profiles, nil
}

// LoadRestrictSet reads the newline-delimited identifier file that puts a
// harvest run into retry mode. Returns nil when no path is given, which means
// no filtering at all; an empty file filters everything out.
func LoadRestrictSet(path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open retry file %s: %w", path, err)
	}
	defer f.Close()

	restrict := map[string]struct{}{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// The error registry is identifier,name; a bare id file has no comma.
		id, _, _ := strings.Cut(strings.TrimSpace(scanner.Text()), ",")
		if id != "" {
			restrict[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read retry file %s: %w", path, err)
	}

	return restrict, nil
}
