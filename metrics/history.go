package metrics

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// HistoryStats is implemented by *history.History
type HistoryStats interface {
	ID() uuid.UUID
	Name() string
	UndoCount() int
	RedoCount() int
	DataSize() int
	Dirty() bool
}

// HistoryCollector is a prometheus.Collector reporting the state of any number of histories.
// Histories are added as they are opened and removed as they are destroyed.
type HistoryCollector struct {
	options CollectorOptions

	mutex     sync.Mutex
	histories []HistoryStats

	undoCommands *prometheus.Desc
	redoCommands *prometheus.Desc
	dataBytes    *prometheus.Desc
	dirty        *prometheus.Desc
}

var _ prometheus.Collector = &HistoryCollector{}

// NewHistoryCollector creates an empty HistoryCollector. Every metric carries history and id
// labels.
func NewHistoryCollector(options CollectorOptions) *HistoryCollector {
	labels := []string{"history", "id"}
	describe := func(metric string, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(options.namespace(), "history", metric), help, labels, nil)
	}

	return &HistoryCollector{
		options: options,

		undoCommands: describe("undo_commands", "Number of commands on the undo stack."),
		redoCommands: describe("redo_commands", "Number of commands on the redo stack."),
		dataBytes:    describe("data_bytes", "Payload bytes recorded by commands on both stacks."),
		dirty:        describe("dirty", "1 if the history has changes since its clean point, 0 otherwise."),
	}
}

// Add starts reporting h
func (c *HistoryCollector) Add(h HistoryStats) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.histories = append(c.histories, h)
}

// Remove stops reporting the history with the provided id. It returns false if no such history
// was being reported.
func (c *HistoryCollector) Remove(id uuid.UUID) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for index, h := range c.histories {
		if h.ID() == id {
			c.histories = append(c.histories[:index], c.histories[index+1:]...)
			return true
		}
	}
	return false
}

func (c *HistoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.undoCommands
	ch <- c.redoCommands
	ch <- c.dataBytes
	ch <- c.dirty
}

func (c *HistoryCollector) Collect(ch chan<- prometheus.Metric) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	unlock := c.options.lock()
	defer unlock()

	for _, h := range c.histories {
		name, id := h.Name(), h.ID().String()

		dirty := 0.0
		if h.Dirty() {
			dirty = 1.0
		}

		ch <- prometheus.MustNewConstMetric(c.undoCommands, prometheus.GaugeValue, float64(h.UndoCount()), name, id)
		ch <- prometheus.MustNewConstMetric(c.redoCommands, prometheus.GaugeValue, float64(h.RedoCount()), name, id)
		ch <- prometheus.MustNewConstMetric(c.dataBytes, prometheus.GaugeValue, float64(h.DataSize()), name, id)
		ch <- prometheus.MustNewConstMetric(c.dirty, prometheus.GaugeValue, dirty, name, id)
	}
}
