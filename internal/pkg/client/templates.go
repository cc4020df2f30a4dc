package client

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/txn"
)

// Template is a canned request
type Template struct {
	MTI         string
	Description string
	Fields      map[int]string
}

// Templates are the requests the send command knows how to build
var Templates = map[string]Template{
	"0100": {
		MTI:         "0100",
		Description: "Authorization request",
		Fields: map[int]string{
			as2805.FieldPAN:            "4111111111111111",
			as2805.FieldProcessingCode: "000000",
			as2805.FieldAmount:         "000000001000",
			as2805.FieldTerminalID:     "TERM0001",
			as2805.FieldMerchantID:     "MERCH001",
		},
	},
	"0200": {
		MTI:         "0200",
		Description: "Financial request",
		Fields: map[int]string{
			as2805.FieldPAN:            "5555555555554444",
			as2805.FieldProcessingCode: "000000",
			as2805.FieldAmount:         "000000005000",
			as2805.FieldTerminalID:     "TERM0001",
			as2805.FieldMerchantID:     "MERCH001",
		},
	},
	"0220": {
		MTI:         "0220",
		Description: "Financial advice",
		Fields: map[int]string{
			as2805.FieldPAN:            "4111111111111111",
			as2805.FieldProcessingCode: "000000",
			as2805.FieldAmount:         "000000002500",
			as2805.FieldTerminalID:     "TERM0001",
			as2805.FieldMerchantID:     "MERCH001",
		},
	},
	"0400": {
		MTI:         "0400",
		Description: "Reversal",
		Fields: map[int]string{
			as2805.FieldPAN:            "4111111111111111",
			as2805.FieldProcessingCode: "000000",
			as2805.FieldAmount:         "000000001000",
			as2805.FieldTerminalID:     "TERM0001",
			as2805.FieldMerchantID:     "MERCH001",
		},
	},
	"0800": {
		MTI:         "0800",
		Description: "Network management echo",
		Fields: map[int]string{
			as2805.FieldProcessingCode:  "990000",
			as2805.FieldNetworkMgmtCode: txn.NMICEcho,
		},
	},
}

// TemplateNames returns the known template names, sorted
func TemplateNames() []string {
	names := make([]string, 0, len(Templates))
	for name := range Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builder fills templates with the transmission time and a rolling STAN
type Builder struct {
	mu   sync.Mutex
	stan int
	now  func() time.Time

	// last remembers the most recent financial request, referenced by reversals
	last *as2805.Message
}

// NewBuilder creates a builder whose first STAN is start+1
func NewBuilder(start int) *Builder {
	return &Builder{stan: start % 999999, now: time.Now}
}

func (b *Builder) nextSTAN() string {
	b.stan = b.stan%999999 + 1
	return fmt.Sprintf("%06d", b.stan)
}

// Build creates a request from the named template. overrides replace or add
// field values after the template is applied.
func (b *Builder) Build(name string, overrides map[int]string) (*as2805.Message, error) {
	tmpl, ok := Templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	msg := as2805.NewMessage(tmpl.MTI)
	for idx, v := range tmpl.Fields {
		if err := msg.SetString(idx, v); err != nil {
			return nil, err
		}
	}
	if err := msg.SetString(as2805.FieldTransmissionDateTime, now.Format(as2805.TransmissionTimeLayout)); err != nil {
		return nil, err
	}
	if err := msg.SetString(as2805.FieldSTAN, b.nextSTAN()); err != nil {
		return nil, err
	}

	if tmpl.MTI == "0400" {
		if err := msg.SetString(as2805.FieldOriginalData, b.originalData()); err != nil {
			return nil, err
		}
	}

	for idx, v := range overrides {
		if err := msg.SetString(idx, v); err != nil {
			return nil, fmt.Errorf("field %d: %w", idx, err)
		}
	}

	if tmpl.MTI == "0100" || tmpl.MTI == "0200" {
		b.last = msg.Clone()
	}
	return msg, nil
}

// originalData builds field 90 from the last financial request: original
// MTI, STAN and transmission time followed by zero acquirer and forwarder ids
func (b *Builder) originalData() string {
	mti, stan, sent := "0200", "000000", "0000000000"
	if b.last != nil {
		mti = b.last.MTI
		stan = b.last.GetString(as2805.FieldSTAN)
		sent = b.last.GetString(as2805.FieldTransmissionDateTime)
	}
	return fmt.Sprintf("%s%s%s%011d%011d", mti, stan, sent, 0, 0)
}
