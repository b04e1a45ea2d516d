package domain

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Status string

const (
	Pending   Status = "pending"
	Queued    Status = "queued"
	Routing   Status = "routing"
	Building  Status = "building"
	Submitted Status = "submitted"
	Confirmed Status = "confirmed"
	Failed    Status = "failed"
)

// rank orders the forward lifecycle. Queued sits below Pending: it is the
// one permitted backward edge, taken when an attempt fails and the job
// goes back to the queue.
var rank = map[Status]int{
	Queued:    0,
	Pending:   1,
	Routing:   2,
	Building:  3,
	Submitted: 4,
	Confirmed: 5,
	Failed:    5,
}

func (s Status) Rank() int { return rank[s] }

func (s Status) Terminal() bool { return s == Confirmed || s == Failed }

type OrderRequest struct {
	InputToken  string  `json:"inputToken"`
	OutputToken string  `json:"outputToken"`
	Amount      float64 `json:"amount"`
}

func (r OrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.InputToken, validation.Required),
		validation.Field(&r.OutputToken, validation.Required),
		validation.Field(&r.Amount, validation.Required, validation.Min(0.0).Exclusive()),
	)
}

type Order struct {
	ID        string       `json:"id"`
	Request   OrderRequest `json:"request"`
	Status    Status       `json:"status"`
	Venue     string       `json:"venue,omitempty"`
	Price     float64      `json:"price,omitempty"`
	TxHash    string       `json:"txHash,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// StatusEvent is published on every transition and never persisted by the
// relay. Request rides along only on the first sighting statuses so the
// ingress side can insert-if-absent; it is stripped before the push.
type StatusEvent struct {
	OrderID   string        `json:"id"`
	Status    Status        `json:"status"`
	Venue     string        `json:"venue,omitempty"`
	Price     float64       `json:"price,omitempty"`
	TxHash    string        `json:"txHash,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Request   *OrderRequest `json:"orderDetails,omitempty"`
}
