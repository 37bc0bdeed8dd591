package elastic

// SuperCluster returns a new cluster with fresh copies of the
// cluster's task definitions and a single server whose capacities are
// summed across the cluster's servers. Relaxing server boundaries
// this way upper-bounds the welfare any real assignment can reach.
func SuperCluster(c *Cluster) (*Cluster, error) {
	tasks := make([]*Task, len(c.tasks))
	for i, t := range c.tasks {
		ct := &Task{
			Name:                t.Name,
			RequiredStorage:     t.RequiredStorage,
			RequiredComputation: t.RequiredComputation,
			RequiredResultsData: t.RequiredResultsData,
			Deadline:            t.Deadline,
			Value:               t.Value,
			Arrival:             t.Arrival,
		}
		if t.fixed != nil {
			f := *t.fixed
			ct.fixed = &f
		}
		tasks[i] = ct
	}

	var storage, computation, bandwidth int64
	for _, s := range c.servers {
		storage += s.StorageCapacity
		computation += s.ComputationCapacity
		bandwidth += s.BandwidthCapacity
	}
	super := &Server{
		Name:                "super-server",
		StorageCapacity:     storage,
		ComputationCapacity: computation,
		BandwidthCapacity:   bandwidth,
	}

	return NewCluster(tasks, []*Server{super})
}
