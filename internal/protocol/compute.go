package protocol

import "fmt"

// ComputeTask occupies a machine's queue and advances its progress by
// step_size per simulator step while it is at the head of that queue
// (spec.md §4.E).
type ComputeTask struct {
	Base

	DevID    int
	Size     float64
	Progress float64
}

func NewComputeTask(id, devID int, size float64) *ComputeTask {
	t := &ComputeTask{DevID: devID, Size: size}
	t.ID = id
	t.Status = Blocked
	return t
}

func (t *ComputeTask) Base() *Base { return &t.Base }
func (t *ComputeTask) Type() Type  { return TypeCompute }

// MakeProgress advances by min(remaining, step_size); returns the actual
// progress made and whether the task finished this step.
func (t *ComputeTask) MakeProgress(stepSize float64) (progress float64, finished bool) {
	remaining := t.Size - t.Progress
	step := stepSize
	if remaining < step {
		step = remaining
	}
	t.Progress += step
	if t.Progress >= t.Size {
		t.Progress = t.Size
		t.Status = Finished
		finished = true
	}
	return step, finished
}

func (t *ComputeTask) CrudeRemainingTimeEstimate() float64 {
	return t.Size - t.Progress
}

func (t *ComputeTask) Reset() {
	t.Progress = 0
	t.Status = Blocked
}

func (t *ComputeTask) ShallowCopy() Task {
	return NewComputeTask(t.ID, t.DevID, t.Size)
}

func (t *ComputeTask) Describe() string {
	return fmt.Sprintf("Forw [%05d] size %v dev %d", t.ID, t.Size, t.DevID)
}
