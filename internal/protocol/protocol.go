package protocol

import "fmt"

// Protocol owns a set of tasks by integer id and the dependency graph
// connecting them (spec.md §4.D). Grounded on Protocol::add_to_tasks /
// build_dependency_graph / make_copy.
type Protocol struct {
	Kind Kind

	Tasks       []Task
	TaskMap     map[int]Task
	Initiators  []Task
	Finishers   []Task
	MaxRank     int
	maxAllocID  int

	TotalTaskCount    int
	FinishedTaskCount int

	perJobTaskCounter int
	isInitiator       map[int]bool
	isFinisher        map[int]bool
}

// New returns an empty protocol ready to accept tasks.
func New() *Protocol {
	return &Protocol{
		Kind:        MainProtocol,
		TaskMap:     make(map[int]Task),
		isInitiator: make(map[int]bool),
		isFinisher:  make(map[int]bool),
	}
}

// AddTask inserts an already-constructed task, assigning it an id when id
// is -1 and failing (spec.md §7 DAG error) on a duplicate id.
func (p *Protocol) AddTask(task Task, id int) error {
	if id == -1 {
		id = p.maxAllocID + 1
	}

	if _, exists := p.TaskMap[id]; exists {
		return fmt.Errorf("protocol: task id %d already exists", id)
	}

	base := task.Base()
	base.ID = id
	if id > p.maxAllocID {
		p.maxAllocID = id
	}

	p.Tasks = append(p.Tasks, task)
	p.TaskMap[id] = task
	p.TotalTaskCount++

	// Every task starts as both an initiator and a finisher candidate;
	// build_dependency_graph clears the flag on whichever side gets an
	// edge attached to it.
	p.isInitiator[id] = true
	p.isFinisher[id] = true

	p.perJobTaskCounter++
	return nil
}

// CreateTask builds and inserts a task of the given type.
func (p *Protocol) CreateTask(typ Type, id int) (Task, error) {
	var task Task
	switch typ {
	case TypeFlow:
		task = NewFlow(id, 0, 0, 1, 1, LoadMetricDefault)
	case TypeCompute:
		task = NewComputeTask(id, 0, 0)
	case TypeEmpty:
		task = NewEmptyTask(id)
	default:
		return nil, fmt.Errorf("protocol: unknown task type %v", typ)
	}

	if err := p.AddTask(task, id); err != nil {
		return nil, err
	}
	return task, nil
}

// BuildDependencyGraph resolves every task's next_task_ids to task
// pointers, identifies initiators/finishers, and assigns each task the
// maximum rank of any predecessor + 1 via BFS. It is idempotent: calling
// it again only extends edges added since the last call, never removes
// or contradicts existing ones (spec.md §4.D).
func (p *Protocol) BuildDependencyGraph() {
	for _, task := range p.Tasks {
		base := task.Base()
		for _, nextID := range base.NextTaskIDs {
			next, ok := p.TaskMap[nextID]
			if !ok {
				continue
			}
			nextBase := next.Base()

			base.NextTasks = append(base.NextTasks, next)
			nextBase.PrevTasks = append(nextBase.PrevTasks, task)
			nextBase.DepLeft++

			p.isFinisher[base.ID] = false
			p.isInitiator[nextBase.ID] = false
		}
		base.NextTaskIDs = nil
	}

	p.Initiators = p.Initiators[:0]
	p.Finishers = p.Finishers[:0]
	for _, task := range p.Tasks {
		base := task.Base()
		if p.isInitiator[base.ID] {
			p.Initiators = append(p.Initiators, task)
		}
		if p.isFinisher[base.ID] {
			p.Finishers = append(p.Finishers, task)
		}
	}

	for _, task := range p.Tasks {
		task.Base().RankBFSQueued = false
	}

	p.MaxRank = 0
	queue := make([]Task, 0, len(p.Initiators))
	for _, task := range p.Initiators {
		base := task.Base()
		base.Rank = 0
		base.RankBFSQueued = true
		queue = append(queue, task)
	}

	for len(queue) > 0 {
		task := queue[0]
		queue = queue[1:]
		base := task.Base()

		for _, next := range base.NextTasks {
			nextBase := next.Base()
			if base.Rank+1 > nextBase.Rank {
				nextBase.Rank = base.Rank + 1
			}
			if nextBase.Rank > p.MaxRank {
				p.MaxRank = nextBase.Rank
			}
			if !nextBase.RankBFSQueued {
				nextBase.RankBFSQueued = true
				queue = append(queue, next)
			}
		}
	}
}

// ApplyRateConfig stamps the configured rate defaults onto every flow in
// the protocol. Flows are built with zeroed rate fields (CreateTask has
// no access to global configuration by design — Design Notes §9,
// "explicit context object" over package-level globals); the caller
// applies configuration once after construction, mirroring gconfig's
// role in the original Flow constructor.
func (p *Protocol) ApplyRateConfig(initialRate, minRate, rateIncrease, rateDecreaseFactor float64, metric LoadMetric) {
	for _, f := range p.Flows() {
		f.InitialRate = initialRate
		f.CurrentRate = initialRate
		f.MinRate = minRate
		f.RateIncrease = rateIncrease
		f.RateDecreaseFactor = rateDecreaseFactor
		f.LoadMetric = metric
	}
}

// Flows returns every Flow task in the protocol.
func (p *Protocol) Flows() []*Flow {
	var flows []*Flow
	for _, task := range p.Tasks {
		if f, ok := task.(*Flow); ok {
			flows = append(flows, f)
		}
	}
	return flows
}

// MakeCopy returns a structurally identical protocol with fresh task
// objects carrying the same ids, optionally rebuilding the dependency
// graph.
func (p *Protocol) MakeCopy(buildGraph bool) *Protocol {
	replica := New()
	replica.Kind = p.Kind

	for _, task := range p.Tasks {
		base := task.Base()
		newTask, err := replica.CreateTask(task.Type(), base.ID)
		if err != nil {
			panic(err)
		}

		switch t := task.(type) {
		case *ComputeTask:
			nt := newTask.(*ComputeTask)
			nt.Size = t.Size
			nt.DevID = t.DevID
		case *Flow:
			nt := newTask.(*Flow)
			nt.Size = t.Size
			nt.SrcDevID = t.SrcDevID
			nt.DstDevID = t.DstDevID
		}

		nextIDs := append([]int(nil), base.NextTaskIDs...)
		for _, next := range base.NextTasks {
			nextIDs = append(nextIDs, next.Base().ID)
		}
		newTask.Base().NextTaskIDs = nextIDs
	}

	if buildGraph {
		replica.BuildDependencyGraph()
	}

	return replica
}
