package protocol

import "fmt"

// EmptyTask is a pure synchronization point: it carries no work and
// finishes the instant it unblocks.
type EmptyTask struct {
	Base
	Name string
}

func NewEmptyTask(id int) *EmptyTask {
	t := &EmptyTask{Name: "Empty"}
	t.ID = id
	t.Status = Blocked
	return t
}

func (t *EmptyTask) Base() *Base { return &t.Base }
func (t *EmptyTask) Type() Type  { return TypeEmpty }

func (t *EmptyTask) Reset() { t.Status = Blocked }

func (t *EmptyTask) ShallowCopy() Task { return NewEmptyTask(t.ID) }

func (t *EmptyTask) Describe() string {
	return fmt.Sprintf("AllR [%05d] size 0 dev 0", t.ID)
}
