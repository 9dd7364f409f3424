package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadReportPercentiles(t *testing.T) {
	s := &loadStats{codes: make(map[int]int)}
	for i := 100; i >= 1; i-- {
		s.record(time.Duration(i)*time.Millisecond, 200, nil)
	}
	s.record(0, 503, nil)

	r := s.report(2 * time.Second)
	assert.Equal(t, int64(101), r.Requests)
	assert.Equal(t, int64(1), r.Failed)
	assert.InDelta(t, 50.5, r.PerSecond, 0.01)
	assert.Equal(t, 100*time.Millisecond, r.Max)
	assert.Equal(t, 50*time.Millisecond, r.P50)
	assert.Equal(t, map[int]int{200: 100, 503: 1}, r.StatusCodes)
}
