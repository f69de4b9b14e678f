package config

type WorkerKeyStruct struct {
	DispatchResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	DispatchResultsQueue: "dispatch_results_queue",
}
