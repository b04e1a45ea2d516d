package domain

// Job is the queue entry for one order. The queue serializes it whole so
// workers need nothing but Redis to pick up work. Attempt counts from 1;
// the queue, not the worker, owns retry scheduling.
type Job struct {
	OrderID     string       `json:"orderId"`
	Request     OrderRequest `json:"orderDetails"`
	Attempt     int          `json:"attempt"`
	MaxAttempts int          `json:"maxAttempts"`
}
