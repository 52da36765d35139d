package protocol

// RingAllReduce builds a ring all-reduce: each of num_replicas chunks
// circulates once around the ring accumulating an aggregate (num_replicas-1
// comm+compute steps), then circulates a second time broadcasting the
// aggregate back out (num_replicas-1 comm-only steps). Grounded on
// insert_all_reduce_into_protocol in the original protocol builder
// (protocol_builder.cc:412-609): an initial_barrier EmptyTask joins every
// chain's first flow, and a barrier EmptyTask gathers every chain's
// stage-j aggregate (reduce-scatter half) or stage-j flow (broadcast
// half) before releasing stage-(j+1) — stage k+1 cannot start on any
// chain before stage k has finished on all of them.
func RingAllReduce(numReplicas int, commSize, aggregateTime float64) *Protocol {
	p := New()
	taskCounter := 0
	stages := numReplicas - 1

	initialBarrier, _ := p.CreateTask(TypeEmpty, taskCounter)
	taskCounter++

	reduceFlow := make([][]Task, stages)
	reduceAgg := make([][]Task, stages)
	for j := 0; j < stages; j++ {
		reduceFlow[j] = make([]Task, numReplicas)
		reduceAgg[j] = make([]Task, numReplicas)
		for i := 0; i < numReplicas; i++ {
			flow, _ := p.CreateTask(TypeFlow, taskCounter)
			f := flow.(*Flow)
			f.Size = commSize
			f.SrcDevID = (i + j) % numReplicas
			f.DstDevID = (i + j + 1) % numReplicas
			taskCounter++

			agg, _ := p.CreateTask(TypeCompute, taskCounter)
			a := agg.(*ComputeTask)
			a.Size = aggregateTime
			a.DevID = (i + j + 1) % numReplicas
			taskCounter++

			f.AddNextTaskID(a.ID)
			reduceFlow[j][i] = flow
			reduceAgg[j][i] = agg
		}
	}

	broadcastFlow := make([][]Task, stages)
	for j := 0; j < stages; j++ {
		broadcastFlow[j] = make([]Task, numReplicas)
		for i := 0; i < numReplicas; i++ {
			starting := i + stages
			flow, _ := p.CreateTask(TypeFlow, taskCounter)
			f := flow.(*Flow)
			f.Size = commSize
			f.SrcDevID = (starting + j) % numReplicas
			f.DstDevID = (starting + j + 1) % numReplicas
			taskCounter++
			broadcastFlow[j][i] = flow
		}
	}

	for i := 0; i < numReplicas; i++ {
		initialBarrier.Base().AddNextTaskID(reduceFlow[0][i].Base().ID)
	}

	for j := 0; j < stages-1; j++ {
		barrier, _ := p.CreateTask(TypeEmpty, taskCounter)
		taskCounter++
		for i := 0; i < numReplicas; i++ {
			reduceAgg[j][i].Base().AddNextTaskID(barrier.Base().ID)
		}
		for i := 0; i < numReplicas; i++ {
			barrier.Base().AddNextTaskID(reduceFlow[j+1][i].Base().ID)
		}
	}

	transition, _ := p.CreateTask(TypeEmpty, taskCounter)
	taskCounter++
	for i := 0; i < numReplicas; i++ {
		reduceAgg[stages-1][i].Base().AddNextTaskID(transition.Base().ID)
	}
	for i := 0; i < numReplicas; i++ {
		transition.Base().AddNextTaskID(broadcastFlow[0][i].Base().ID)
	}

	for j := 0; j < stages-1; j++ {
		barrier, _ := p.CreateTask(TypeEmpty, taskCounter)
		taskCounter++
		for i := 0; i < numReplicas; i++ {
			broadcastFlow[j][i].Base().AddNextTaskID(barrier.Base().ID)
		}
		for i := 0; i < numReplicas; i++ {
			barrier.Base().AddNextTaskID(broadcastFlow[j+1][i].Base().ID)
		}
	}

	p.BuildDependencyGraph()
	return p
}

// AllToAll builds chunkCount independent rounds in which every ordered
// pair of distinct replicas exchanges one flow of size comm_size. The
// rounds have no dependency edges between them — they are scheduling
// siblings, not a pipeline.
func AllToAll(numReplicas int, commSize float64, chunkCount int) *Protocol {
	p := New()
	taskCounter := 0

	for k := 0; k < chunkCount; k++ {
		for i := 0; i < numReplicas; i++ {
			for j := 0; j < numReplicas; j++ {
				if i == j {
					continue
				}
				flow, _ := p.CreateTask(TypeFlow, taskCounter)
				f := flow.(*Flow)
				f.Size = commSize
				f.SrcDevID = i
				f.DstDevID = j
				taskCounter++
			}
		}
	}

	p.BuildDependencyGraph()
	return p
}

// PingPong builds a two-machine request/response chain of length rounds,
// useful as a minimal smoke-test protocol.
func PingPong(commSize float64, rounds int) *Protocol {
	p := New()
	taskCounter := 0
	var prev Task

	for r := 0; r < rounds; r++ {
		src, dst := 0, 1
		if r%2 == 1 {
			src, dst = 1, 0
		}

		flow, _ := p.CreateTask(TypeFlow, taskCounter)
		f := flow.(*Flow)
		f.Size = commSize
		f.SrcDevID = src
		f.DstDevID = dst
		taskCounter++

		if prev != nil {
			prev.Base().AddNextTaskID(f.ID)
		}
		prev = f
	}

	p.BuildDependencyGraph()
	return p
}
