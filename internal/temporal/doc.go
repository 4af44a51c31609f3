// Package temporal provides Temporal integration for durable query harvests.
//
// A harvest executes a stored query and then retrieves every paper it
// returned, one RetrievePaper activity per paper. Each activity is retried on
// its own, so a harvest of thousands of PMIDs survives worker restarts and
// NCBI throttling without redoing finished papers.
//
// # Client Setup
//
//	c, err := temporal.NewClient(temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "default",
//	    TaskQueue: "ncbi-harvest",
//	})
//	if err != nil {
//	    return err
//	}
//	harvests := temporal.NewHarvestClient(c, cfg)
//	defer harvests.Close()
//
// # Starting Harvests
//
//	workflowID, runID, err := harvests.StartHarvest(ctx, queryID)
//	if temporal.IsWorkflowAlreadyStarted(err) {
//	    // a harvest of this query is still running
//	}
//
// # Worker Setup
//
// The worker binary registers workflows.HarvestQueryWorkflow and
// activities.HarvestActivities:
//
//	m, err := temporal.NewWorkerManager(c, temporal.DefaultWorkerConfig(queue))
//	m.RegisterHarvest(workflows.HarvestQueryWorkflow, activities.NewHarvestActivities(svc))
//	err = m.Start(ctx)
package temporal
