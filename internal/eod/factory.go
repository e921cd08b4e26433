package eod

import (
	"time"

	"ai-trading-challenge/internal/interfaces"
)

func NewSummarizer(logDir string) interfaces.EodSummarizer {
	return &eodSummarizer{dir: logDir, now: time.Now}
}
