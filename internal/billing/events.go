package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/renattofarid/fertiriego/internal/money"
)

// EventType names a ledger or status change.
type EventType string

const (
	EventPaymentRecorded EventType = "payment_recorded"
	EventPaymentEdited   EventType = "payment_edited"
	EventPaymentRemoved  EventType = "payment_removed"
	EventStatusChanged   EventType = "status_changed"
)

// Event is raised by the ledger and the status engine and drained by the
// caller after the document has been persisted.
type Event struct {
	Type           EventType      `json:"type"`
	DocumentID     int64          `json:"document_id"`
	InstallmentSeq int            `json:"installment_seq,omitempty"`
	PaymentID      uuid.UUID      `json:"payment_id,omitempty"`
	From           DocumentStatus `json:"from,omitempty"`
	Status         DocumentStatus `json:"status"`
	Pending        money.Money    `json:"pending"`
	At             time.Time      `json:"at"`
}

func (d *Document) raise(e Event) {
	e.DocumentID = d.ID
	e.Pending = d.Pending()
	if e.Status == "" {
		e.Status = d.Status
	}
	d.events = append(d.events, e)
}
