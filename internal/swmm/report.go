package swmm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
)

const (
	floodingSectionTitle = "Node Flooding Summary"
	noFloodingMarker     = "No nodes were flooded"
	dashRule             = "----------"

	// floodingColumns is the minimum token count of a flooding table row:
	// node, hours, max rate, days, hr:min, total volume.
	floodingColumns = 6
)

// ParseFloodingReportFile parses the flooding table of a report file on disk.
func ParseFloodingReportFile(path string) (map[string]domain.FloodingRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return ParseFloodingReport(f)
}

// ParseFloodingReport extracts the Node Flooding Summary table. Data rows start
// after the second dashed rule following the title and end at the next section
// banner or rule. A report without flooded nodes yields an empty map.
func ParseFloodingReport(r io.Reader) (map[string]domain.FloodingRow, error) {
	rows := make(map[string]domain.FloodingRow)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inSection := false
	rules := 0
	for sc.Scan() {
		text := sc.Text()
		if !inSection {
			inSection = strings.Contains(text, floodingSectionTitle)
			continue
		}

		if rules < 2 {
			switch {
			case strings.Contains(text, noFloodingMarker):
				return rows, nil
			case strings.Contains(text, dashRule):
				rules++
			}
			continue
		}

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "*") || (strings.HasPrefix(trimmed, "-") && len(trimmed) > 10) {
			break
		}

		parts := strings.Fields(trimmed)
		if len(parts) < floodingColumns {
			continue
		}
		row, err := parseFloodingRow(parts)
		if err != nil {
			return nil, err
		}
		rows[row.Node] = row
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return rows, nil
}

func parseFloodingRow(parts []string) (domain.FloodingRow, error) {
	node := parts[0]
	values := make([]float64, 0, 4)
	for _, i := range []int{1, 2, 3, 5} {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return domain.FloodingRow{}, fmt.Errorf("parse flooding row for node %s: column %d: %w", node, i, err)
		}
		values = append(values, v)
	}
	return domain.FloodingRow{
		Node:            node,
		HoursFlooded:    values[0],
		MaxRateCMS:      values[1],
		TimeOfMaxDays:   values[2],
		TimeOfMaxHrMin:  parts[4],
		TotalVolume10e6: values[3],
	}, nil
}
