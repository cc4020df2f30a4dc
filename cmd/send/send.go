package send

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/endorses/paycat/internal/pkg/as2805"
	"github.com/endorses/paycat/internal/pkg/client"
	"github.com/endorses/paycat/internal/pkg/cmdutil"
	"github.com/endorses/paycat/internal/pkg/constants"
	"github.com/endorses/paycat/internal/pkg/logger"
	"github.com/endorses/paycat/internal/pkg/output"
	"github.com/endorses/paycat/internal/pkg/tlsutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var SendCmd = &cobra.Command{
	Use:   "send [template...]",
	Short: "Send test transactions to a switch",
	Long: `Send canned AS2805 requests to a running switch and print the responses.

Templates: 0100 (authorization), 0200 (financial), 0220 (advice),
0400 (reversal of the previous 0100/0200) and 0800 (network management).
Without arguments every template is sent once, in order.

Example:
  paycat send 0200
  paycat send 0100 --amount 000000250000 --count 5
  paycat send 0800 --nmic 001
  paycat send 0200 0400 --framing binary2 --json`,
	ValidArgs: client.TemplateNames(),
	Args:      cobra.OnlyValidArgs,
	RunE:      runSend,
}

var (
	addr          string
	headerLength  int
	framing       string
	timeout       time.Duration
	count         int
	amount        string
	nmic          string
	pan           string
	terminalID    string
	startSTAN     int
	jsonOutput    bool
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool
)

func init() {
	SendCmd.Flags().StringVarP(&addr, "addr", "a", "localhost:8000", "Switch address (host:port)")
	SendCmd.Flags().IntVar(&headerLength, "header-length", 0, "Length of the header preceding the MTI (filled with zeros)")
	SendCmd.Flags().StringVar(&framing, "framing", "ascii4", "Frame length prefix: ascii4, binary2 or binary4")
	SendCmd.Flags().DurationVar(&timeout, "timeout", constants.DefaultClientTimeout, "Response timeout")
	SendCmd.Flags().IntVarP(&count, "count", "n", 1, "Number of times to send each template")
	SendCmd.Flags().StringVar(&amount, "amount", "", "Override field 4 (12 digits, minor units)")
	SendCmd.Flags().StringVar(&nmic, "nmic", "", "Override field 70 of 0800 (001 sign-on, 002 sign-off, 301 echo)")
	SendCmd.Flags().StringVar(&pan, "pan", "", "Override field 2")
	SendCmd.Flags().StringVar(&terminalID, "terminal-id", "", "Override field 41")
	SendCmd.Flags().IntVar(&startSTAN, "stan", 0, "STAN preceding the first request")
	SendCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print responses as JSON")

	SendCmd.Flags().BoolVar(&tlsEnabled, "tls", false, "Connect with TLS")
	SendCmd.Flags().StringVar(&tlsCAFile, "tls-ca", "", "Path to CA certificate for server verification")
	SendCmd.Flags().StringVar(&tlsCertFile, "tls-cert", "", "Path to client certificate (mutual TLS)")
	SendCmd.Flags().StringVar(&tlsKeyFile, "tls-key", "", "Path to client key (mutual TLS)")
	SendCmd.Flags().BoolVar(&tlsSkipVerify, "tls-skip-verify", false, "Skip certificate verification (testing only)")

	viper.BindPFlag("send.addr", SendCmd.Flags().Lookup("addr"))
	viper.BindPFlag("send.header-length", SendCmd.Flags().Lookup("header-length"))
	viper.BindPFlag("send.framing", SendCmd.Flags().Lookup("framing"))
	viper.BindPFlag("send.timeout", SendCmd.Flags().Lookup("timeout"))
}

// Result is one request/response pair as printed by send
type Result struct {
	Template     string            `json:"template"`
	STAN         string            `json:"stan"`
	ResponseMTI  string            `json:"response_mti,omitempty"`
	ResponseCode string            `json:"response_code,omitempty"`
	Elapsed      string            `json:"elapsed"`
	Fields       map[string]string `json:"fields,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func runSend(cmd *cobra.Command, args []string) error {
	templates := args
	if len(templates) == 0 {
		templates = client.TemplateNames()
	}
	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	format, err := as2805.ParseFrameFormat(cmdutil.GetStringConfig("send.framing", framing))
	if err != nil {
		return err
	}
	opts := client.Options{
		Codec:   as2805.NewCodec(as2805.DefaultDictionary(), as2805.WithHeaderLength(cmdutil.GetIntConfig("send.header-length", headerLength))),
		Framer:  as2805.NewFramer(format, constants.DefaultMaxFrameSize),
		Timeout: cmdutil.GetDurationConfig("send.timeout", timeout),
	}
	if tlsEnabled {
		opts.TLS, err = tlsutil.BuildClientConfig(tlsutil.ClientConfig{
			CAFile:     tlsCAFile,
			CertFile:   tlsCertFile,
			KeyFile:    tlsKeyFile,
			SkipVerify: tlsSkipVerify,
		})
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	target := cmdutil.GetStringConfig("send.addr", addr)
	c, err := client.Dial(ctx, target, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	results, err := sendAll(ctx, c, client.NewBuilder(startSTAN), templates, count, overrides())
	if jsonOutput {
		if wErr := output.WriteJSON(cmd.OutOrStdout(), results); wErr != nil {
			return wErr
		}
	} else {
		printResults(cmd.OutOrStdout(), results)
	}
	return err
}

func overrides() map[int]string {
	o := make(map[int]string)
	if amount != "" {
		o[as2805.FieldAmount] = amount
	}
	if nmic != "" {
		o[as2805.FieldNetworkMgmtCode] = nmic
	}
	if pan != "" {
		o[as2805.FieldPAN] = pan
	}
	if terminalID != "" {
		o[as2805.FieldTerminalID] = terminalID
	}
	return o
}

// sendAll sends every template count times on one connection. It stops at
// the first transport failure, since the connection is then unusable.
func sendAll(ctx context.Context, c *client.Client, b *client.Builder, templates []string, count int, over map[int]string) ([]Result, error) {
	var results []Result
	for _, name := range templates {
		for i := 0; i < count; i++ {
			fields := make(map[int]string, len(over))
			for idx, v := range over {
				// field 70 only makes sense on network management messages
				if idx == as2805.FieldNetworkMgmtCode && name != "0800" {
					continue
				}
				if idx != as2805.FieldNetworkMgmtCode && name == "0800" {
					continue
				}
				fields[idx] = v
			}

			req, err := b.Build(name, fields)
			if err != nil {
				return results, err
			}

			start := time.Now()
			resp, err := c.Send(ctx, req)
			res := Result{
				Template: name,
				STAN:     req.GetString(as2805.FieldSTAN),
				Elapsed:  time.Since(start).Round(time.Microsecond).String(),
			}
			if resp != nil {
				res.ResponseMTI = resp.MTI
				res.ResponseCode = resp.GetString(as2805.FieldResponseCode)
				res.Fields = fieldMap(resp)
			}
			if err != nil {
				res.Error = err.Error()
				results = append(results, res)
				logger.Error("Exchange failed", "template", name, "stan", res.STAN, "error", err)
				return results, err
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func fieldMap(msg *as2805.Message) map[string]string {
	m := make(map[string]string)
	for _, idx := range msg.Indices() {
		m[strconv.Itoa(idx)] = strings.TrimRight(msg.GetString(idx), " ")
	}
	return m
}

func printResults(w io.Writer, results []Result) {
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "%s  stan=%s  ERROR %s\n", r.Template, r.STAN, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s -> %s  stan=%s  code=%s (%s)  %s\n",
			r.Template, r.ResponseMTI, r.STAN, r.ResponseCode, describeCode(r.ResponseCode), r.Elapsed)
		for _, k := range sortedKeys(r.Fields) {
			fmt.Fprintf(w, "    %3s  %s\n", k, r.Fields[k])
		}
	}
}

func describeCode(code string) string {
	switch code {
	case "00":
		return "approved"
	case "05":
		return "do not honour"
	case "96":
		return "system error"
	default:
		return "unknown"
	}
}

// sortedKeys orders field numbers numerically
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		x, _ := strconv.Atoi(a)
		y, _ := strconv.Atoi(b)
		return x - y
	})
	return keys
}
