// Package txn turns a decoded request into its response message.
//
// Process is a pure function of the request and the Processor configuration:
// it holds no state between calls and is safe for concurrent use from any
// number of sessions.
package txn

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/logger"
)

// Response codes written to field 39
const (
	CodeApproved     = "00"
	CodeDoNotHonour  = "05"
	CodeSystemError  = "96"
	DefaultCeiling   = 1000000
	approvalCodeSize = 6
)

// Network management information codes (field 70) that are acknowledged
const (
	NMICSignOn  = "001"
	NMICSignOff = "002"
	NMICEcho    = "301"
)

// ErrUnrecoverable is returned when not even a decline can be built,
// e.g. the request has no valid MTI. The session closes without a response.
var ErrUnrecoverable = errors.New("request cannot be answered")

// Config holds the business parameters and the value sources of the processor
type Config struct {
	// ApprovalCeiling is the exclusive upper bound of approved amounts
	ApprovalCeiling int64

	// Now returns the transmission time written to field 7
	Now func() time.Time

	// ApprovalCode returns a 6 digit authorization code for field 38
	ApprovalCode func() string

	// RRN returns a 12 character retrieval reference number for field 37
	RRN func(now time.Time) string
}

// DefaultConfig returns the production configuration
func DefaultConfig() Config {
	return Config{
		ApprovalCeiling: DefaultCeiling,
		Now:             time.Now,
		ApprovalCode:    RandomApprovalCode,
		RRN:             NewClockRRN().Next,
	}
}

type handler func(p *Processor, req, resp *as2805.Message) error

// Processor dispatches requests on their MTI
type Processor struct {
	cfg      Config
	handlers map[string]handler
}

// New creates a processor. Zero-valued Config fields fall back to defaults.
func New(cfg Config) *Processor {
	def := DefaultConfig()
	if cfg.ApprovalCeiling <= 0 {
		cfg.ApprovalCeiling = def.ApprovalCeiling
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.ApprovalCode == nil {
		cfg.ApprovalCode = def.ApprovalCode
	}
	if cfg.RRN == nil {
		cfg.RRN = def.RRN
	}

	return &Processor{
		cfg: cfg,
		handlers: map[string]handler{
			"0100": (*Processor).authorize,
			"0200": (*Processor).authorize,
			"0400": (*Processor).reverse,
			"0800": (*Processor).networkManagement,
		},
	}
}

// Config returns the configuration in effect
func (p *Processor) Config() Config {
	return p.cfg
}

// ResponseMTI replaces the function digit of a request MTI with 1 and
// zeroes the origin digit: 0100 -> 0110, 0400 -> 0410, 0800 -> 0810.
func ResponseMTI(mti string) string {
	return mti[:2] + "10"
}

// Supported reports whether the MTI has a dedicated handler
func (p *Processor) Supported(mti string) bool {
	_, ok := p.handlers[mti]
	return ok
}

// Process computes the response for req. The request is never modified.
// Handler failures and panics produce the generic decline; only a request
// without a valid MTI yields an error.
func (p *Processor) Process(req *as2805.Message) (resp *as2805.Message, err error) {
	if req == nil || !as2805.ValidMTI(req.MTI) {
		return nil, ErrUnrecoverable
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic while processing request",
				"panic", r,
				"mti", req.MTI,
				"stan", req.GetString(as2805.FieldSTAN))
			resp, err = p.Decline(req), nil
		}
	}()

	resp = req.Clone()
	resp.MTI = ResponseMTI(req.MTI)

	h, ok := p.handlers[req.MTI]
	if !ok {
		logger.Debug("Unsupported message type", "mti", req.MTI)
		resp.SetString(as2805.FieldResponseCode, CodeSystemError)
		p.finalize(req, resp)
		return resp, nil
	}

	if err := h(p, req, resp); err != nil {
		logger.Warn("Processing error, declining",
			"error", err,
			"mti", req.MTI,
			"stan", req.GetString(as2805.FieldSTAN))
		return p.Decline(req), nil
	}

	p.finalize(req, resp)
	return resp, nil
}

// correlationFields are the request fields echoed on a generic decline
var correlationFields = []int{
	as2805.FieldSTAN,
	as2805.FieldRRN,
	as2805.FieldTerminalID,
	as2805.FieldMerchantID,
}

// Decline builds the generic decline for req: response MTI, field 39 = 96
// and the correlation fields only, so a request field that broke processing
// cannot also break encoding. It returns nil if req has no valid MTI.
func (p *Processor) Decline(req *as2805.Message) *as2805.Message {
	if req == nil || !as2805.ValidMTI(req.MTI) {
		return nil
	}
	resp := as2805.NewMessage(ResponseMTI(req.MTI))
	resp.Header = bytes.Clone(req.Header)
	for _, idx := range correlationFields {
		if v, ok := req.Get(idx); ok {
			resp.Set(idx, v)
		}
	}
	resp.SetString(as2805.FieldResponseCode, CodeSystemError)
	p.finalize(req, resp)
	return resp
}

// DeclineMTI builds a generic decline when only the request MTI survived decoding
func (p *Processor) DeclineMTI(mti string) *as2805.Message {
	return p.Decline(as2805.NewMessage(mti))
}

// finalize applies the post-processing shared by every response
func (p *Processor) finalize(req, resp *as2805.Message) {
	now := p.cfg.Now()
	resp.SetString(as2805.FieldTransmissionDateTime, now.Format(as2805.TransmissionTimeLayout))

	if !resp.Has(as2805.FieldSTAN) {
		if stan, ok := req.Get(as2805.FieldSTAN); ok {
			resp.Set(as2805.FieldSTAN, stan)
		}
	}

	if rrn, ok := req.Get(as2805.FieldRRN); ok {
		resp.Set(as2805.FieldRRN, rrn)
	} else {
		resp.SetString(as2805.FieldRRN, p.cfg.RRN(now))
	}
}

// authorize handles 0100 and 0200 against the approval ceiling
func (p *Processor) authorize(req, resp *as2805.Message) error {
	raw, ok := req.Get(as2805.FieldAmount)
	if !ok {
		resp.SetString(as2805.FieldResponseCode, CodeDoNotHonour)
		return nil
	}

	amount, err := parseAmount(raw)
	if err != nil {
		return err
	}

	if amount < p.cfg.ApprovalCeiling {
		code := p.cfg.ApprovalCode()
		if len(code) != approvalCodeSize {
			return fmt.Errorf("approval code %q is not %d characters", code, approvalCodeSize)
		}
		resp.SetString(as2805.FieldResponseCode, CodeApproved)
		resp.SetString(as2805.FieldApprovalCode, code)
		return nil
	}

	resp.Unset(as2805.FieldApprovalCode)
	resp.SetString(as2805.FieldResponseCode, CodeDoNotHonour)
	return nil
}

// reverse acknowledges every 0400
func (p *Processor) reverse(req, resp *as2805.Message) error {
	resp.SetString(as2805.FieldResponseCode, CodeApproved)
	return nil
}

// networkManagement handles sign-on, sign-off and echo
func (p *Processor) networkManagement(req, resp *as2805.Message) error {
	switch req.GetString(as2805.FieldNetworkMgmtCode) {
	case NMICSignOn, NMICSignOff, NMICEcho:
		resp.SetString(as2805.FieldResponseCode, CodeApproved)
	default:
		resp.SetString(as2805.FieldResponseCode, CodeSystemError)
	}
	return nil
}

// parseAmount accepts only unsigned decimal digits
func parseAmount(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("amount is empty")
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("amount %q is not numeric", b)
		}
		if n > (1<<63-1-9)/10 {
			return 0, fmt.Errorf("amount %q overflows", b)
		}
		n = n*10 + int64(c-'0')
	}
	return n, nil
}
