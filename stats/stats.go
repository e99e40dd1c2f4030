// Package stats reports the progress of loading large graphs.
package stats

import (
	"time"

	"github.com/omniscale/aixmdiff/log"
)

// ElementCounts are the number of loaded elements.
type ElementCounts struct {
	Nodes     int64
	Ways      int64
	Relations int64
}

func (c ElementCounts) Total() int64 {
	return c.Nodes + c.Ways + c.Relations
}

// Statistics counts elements from multiple goroutines and logs the
// progress in a fixed interval. All counts are collected by a single
// goroutine.
type Statistics struct {
	nodes     chan int
	ways      chan int
	relations chan int
	stop      chan chan ElementCounts
}

func (s *Statistics) AddNodes(n int)     { s.nodes <- n }
func (s *Statistics) AddWays(n int)      { s.ways <- n }
func (s *Statistics) AddRelations(n int) { s.relations <- n }

// Stop ends the reporter and returns the final counts. The Statistics
// must not be used afterwards.
func (s *Statistics) Stop() ElementCounts {
	result := make(chan ElementCounts)
	s.stop <- result
	return <-result
}

// NewReporter starts a reporter that logs the progress every interval.
// No progress is logged if interval is zero.
func NewReporter(name string, interval time.Duration) *Statistics {
	s := &Statistics{
		nodes:     make(chan int),
		ways:      make(chan int),
		relations: make(chan int),
		stop:      make(chan chan ElementCounts),
	}

	go func() {
		var tick <-chan time.Time
		if interval > 0 {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		c := ElementCounts{}
		last := c
		lastReport := time.Now()
		for {
			select {
			case n := <-s.nodes:
				c.Nodes += int64(n)
			case n := <-s.ways:
				c.Ways += int64(n)
			case n := <-s.relations:
				c.Relations += int64(n)
			case <-tick:
				if c != last {
					report(name, c, last, time.Since(lastReport))
				}
				last = c
				lastReport = time.Now()
			case result := <-s.stop:
				result <- c
				return
			}
		}
	}()
	return s
}

func report(name string, c, last ElementCounts, dur time.Duration) {
	perSec := int(float64(c.Total()-last.Total()) / dur.Seconds())
	log.Printf("[progress] %s: %s nodes, %s ways, %s relations (%s/s)", name,
		log.Count(int(c.Nodes)), log.Count(int(c.Ways)), log.Count(int(c.Relations)),
		log.Count(perSec),
	)
}
