// Package parser turns the model's pipe-delimited reply into test-case records.
package parser

import (
	"strings"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// MinFields is the fewest pipe-separated segments a line needs to become a
// record: ID, description, preconditions, steps and expected result.
const MinFields = 5

type ResponseParser struct {
	logger logger.Logger
}

func NewResponseParser(log logger.Logger) *ResponseParser {
	return &ResponseParser{logger: log}
}

// Parse reads one record per line. Blank lines are skipped silently, lines
// with fewer than MinFields segments are dropped with a warning, and any
// segments past the fifth are ignored. Status and comments never come from
// the reply.
func (p *ResponseParser) Parse(reply string) []models.TestCaseRecord {
	var records []models.TestCaseRecord
	for i, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < MinFields {
			p.logger.Warn("Dropping malformed test case line",
				logger.Int("line", i+1),
				logger.Int("fields", len(parts)),
			)
			continue
		}

		records = append(records, models.NewTestCaseRecord(
			strings.TrimSpace(parts[0]),
			strings.TrimSpace(parts[1]),
			strings.TrimSpace(parts[2]),
			strings.TrimSpace(parts[3]),
			strings.TrimSpace(parts[4]),
		))
	}
	return records
}
