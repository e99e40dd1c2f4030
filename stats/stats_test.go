package stats

import (
	"sync"
	"testing"
	"time"
)

func TestStatistics(t *testing.T) {
	s := NewReporter("test", 0)

	wg := sync.WaitGroup{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			for j := 0; j < 100; j++ {
				s.AddNodes(2)
				s.AddWays(1)
			}
			s.AddRelations(5)
			wg.Done()
		}()
	}
	wg.Wait()

	c := s.Stop()
	expected := ElementCounts{Nodes: 800, Ways: 400, Relations: 20}
	if c != expected {
		t.Errorf("unexpected counts %#v, expected %#v", c, expected)
	}
	if c.Total() != 1220 {
		t.Errorf("unexpected total %d", c.Total())
	}
}

func TestStatisticsReport(t *testing.T) {
	s := NewReporter("test", time.Millisecond)
	s.AddNodes(1)
	time.Sleep(5 * time.Millisecond)
	s.AddWays(1)
	if c := s.Stop(); c.Nodes != 1 || c.Ways != 1 {
		t.Errorf("unexpected counts %#v", c)
	}
}
