package stats

import "sync/atomic"

type Counter struct {
	tag   string
	count uint64
}

func NewCounter(tag string) Counter {
	return Counter{tag: tag}
}

func (c *Counter) GetCount() uint64 {
	return c.count
}

type AtomicCounter struct {
	tag   string
	count uint64
}

func NewAtomicCounter(tag string) AtomicCounter {
	return AtomicCounter{tag: tag}
}

func (c *AtomicCounter) GetCount() uint64 {
	return atomic.LoadUint64(&c.count)
}
