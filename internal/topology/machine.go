package topology

import "github.com/faridzandi/psim-go/internal/protocol"

// Machine is a single endpoint running a FIFO queue of compute tasks.
// Only the task at the head of the queue can make progress in a given
// step (spec.md §4.E); grounded on Machine::make_progress.
type Machine struct {
	Name int

	queue []*protocol.ComputeTask

	// QueueLengthHistory mirrors task_queue_length_history, sampled once
	// per step when history recording is enabled.
	QueueLengthHistory []int
}

func NewMachine(name int) *Machine {
	return &Machine{Name: name}
}

// Enqueue appends a compute task to this machine's queue.
func (m *Machine) Enqueue(t *protocol.ComputeTask) {
	m.queue = append(m.queue, t)
}

// QueueLen reports how many compute tasks are waiting (including the one
// currently running).
func (m *Machine) QueueLen() int { return len(m.queue) }

// MakeProgress advances the head-of-queue task, if any, by step_size and
// pops it once finished, returning any task that completed this step.
func (m *Machine) MakeProgress(stepSize float64) (finished *protocol.ComputeTask, progressed float64) {
	if len(m.queue) == 0 {
		return nil, 0
	}

	head := m.queue[0]
	progress, done := head.MakeProgress(stepSize)

	if done {
		m.queue = m.queue[1:]
		return head, progress
	}
	return nil, progress
}

// RecordQueueLength appends the current queue length to history.
func (m *Machine) RecordQueueLength() {
	m.QueueLengthHistory = append(m.QueueLengthHistory, len(m.queue))
}
