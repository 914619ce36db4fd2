package domain

import "time"

// Limits are the adjustable scheduling limits.
type Limits struct {
	MaxBatchSize         int `json:"max_batch_size"`
	MaxConcurrentBatches int `json:"max_concurrent_batches"`
}

// Stats are the telemetry counters and averages.
type Stats struct {
	ItemsSeen         uint64        `json:"items_seen"`
	BatchesCreated    uint64        `json:"batches_created"`
	BatchesProcessed  uint64        `json:"batches_processed"`
	BatchesFailed     uint64        `json:"batches_failed"`
	BatchesCancelled  uint64        `json:"batches_cancelled"`
	ItemsEvicted      uint64        `json:"items_evicted"`
	ItemsDeferred     uint64        `json:"items_deferred"`
	Overflows         uint64        `json:"overflows"`
	AvgBatchSize      float64       `json:"avg_batch_size"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	// Efficiency is the mean of min(1, estimated/actual) over completed batches.
	Efficiency float64 `json:"efficiency"`
}

// Status is a point-in-time view of a scheduler instance.
type Status struct {
	Stats            Stats     `json:"stats"`
	Limits           Limits    `json:"limits"`
	ConfiguredLimits Limits    `json:"configured_limits"`
	Resources        Snapshot  `json:"resources"`
	QueueDepth       int       `json:"queue_depth"`
	BatchQueueDepth  int       `json:"batch_queue_depth"`
	ActiveBatches    int       `json:"active_batches"`
	UpdatedAt        time.Time `json:"updated_at"`
}
