// Package audit mirrors every inbound and outbound switch message to
// persistent storage. The protocol path only sees the Sink interface, whose
// Record method never blocks and never fails.
package audit

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/google/uuid"
)

// Direction of a mirrored message relative to the switch
type Direction string

const (
	Received Direction = "RECEIVED"
	Sent     Direction = "SENT"
)

// Exchange identifies one request/response pair on a session
type Exchange struct {
	ID         string
	SessionID  string
	RemoteAddr string
	LocalAddr  string
}

// NewExchange starts an exchange with a fresh ID
func NewExchange(sessionID, remoteAddr, localAddr string) Exchange {
	return Exchange{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		RemoteAddr: remoteAddr,
		LocalAddr:  localAddr,
	}
}

// Record is the stored audit copy of one message
type Record struct {
	ID                   string    `json:"id"`
	ExchangeID           string    `json:"exchange_id"`
	SessionID            string    `json:"session_id"`
	Direction            Direction `json:"direction"`
	MTI                  string    `json:"mti"`
	ProcessingCode       string    `json:"processing_code,omitempty"`
	Amount               string    `json:"amount,omitempty"`
	TransmissionDateTime string    `json:"transmission_datetime,omitempty"`
	STAN                 string    `json:"stan,omitempty"`
	RRN                  string    `json:"rrn,omitempty"`
	ResponseCode         string    `json:"response_code,omitempty"`
	TerminalID           string    `json:"terminal_id,omitempty"`
	MerchantID           string    `json:"merchant_id,omitempty"`
	RawMessage           string    `json:"raw_message"`
	RemoteAddr           string    `json:"remote_addr,omitempty"`
	LocalAddr            string    `json:"local_addr,omitempty"`
	Timestamp            time.Time `json:"timestamp"`

	// Raw is the undecoded wire form, used by the pcap recorder
	Raw []byte `json:"-"`
}

// FromMessage copies what the audit trail needs out of msg. The returned
// record shares no memory with msg.
func FromMessage(dir Direction, msg *as2805.Message, ex Exchange, ts time.Time) Record {
	field := func(idx int) string {
		return strings.TrimRight(msg.GetString(idx), " ")
	}
	return Record{
		ID:                   uuid.NewString(),
		ExchangeID:           ex.ID,
		SessionID:            ex.SessionID,
		Direction:            dir,
		MTI:                  msg.MTI,
		ProcessingCode:       field(as2805.FieldProcessingCode),
		Amount:               field(as2805.FieldAmount),
		TransmissionDateTime: field(as2805.FieldTransmissionDateTime),
		STAN:                 field(as2805.FieldSTAN),
		RRN:                  field(as2805.FieldRRN),
		ResponseCode:         field(as2805.FieldResponseCode),
		TerminalID:           field(as2805.FieldTerminalID),
		MerchantID:           field(as2805.FieldMerchantID),
		RawMessage:           hex.EncodeToString(msg.Raw),
		RemoteAddr:           ex.RemoteAddr,
		LocalAddr:            ex.LocalAddr,
		Timestamp:            ts,
		Raw:                  bytes.Clone(msg.Raw),
	}
}

// Sink receives fire-and-forget copies of switch traffic
type Sink interface {
	Record(dir Direction, msg *as2805.Message, ex Exchange)
}

// NopSink discards everything
type NopSink struct{}

func (NopSink) Record(Direction, *as2805.Message, Exchange) {}

// Backend persists records. Backends are called from a single goroutine.
type Backend interface {
	Name() string
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Status is the switch status row
type Status struct {
	Status                string    `json:"status"`
	StartTime             time.Time `json:"start_time"`
	TransactionsProcessed int64     `json:"transactions_processed"`
	LastUpdated           time.Time `json:"last_updated"`
}

// HourlyCount is the number of received requests in one hour
type HourlyCount struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// Querier reads back what a backend stored
type Querier interface {
	Status(ctx context.Context) (Status, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
	CountsByHour(ctx context.Context, since time.Time) ([]HourlyCount, error)
}
