// Package warmpool maintains a target number of pre-created, unassigned
// containers so Access can claim one with zero creation latency.
package warmpool

// ReplenishTaskType is the asynq task type name for a replenish request.
// The task carries no payload: the algorithm always reads current state
// fresh from the store.
const ReplenishTaskType = "pool:replenish"
