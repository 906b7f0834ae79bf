// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

var encodeFrame string

var encodeCmd = &cobra.Command{
	Use:   "encode [PROPERTY VALUE]",
	Short: "Print the frame a property change or module request produces",
	Long: `Encode a frame offline and print it as hex.

With PROPERTY and VALUE, the change is applied to the selected device model
and the SET_DATA_POINT frame the bridge would send is printed.

With --frame, a module request is encoded instead. Known frames:
  heartbeat, product, query, time

No connection is opened.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringVar(&encodeFrame, "frame", "", "Module request to encode (heartbeat, product, query, time)")
}

func runEncode(cmd *cobra.Command, args []string) error {
	if encodeFrame != "" {
		if len(args) != 0 {
			return fmt.Errorf("--frame takes no arguments")
		}
		f, err := moduleRequest(encodeFrame)
		if err != nil {
			return err
		}
		printEncoded(tuya.MustEncodeFrame(f))
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("expected PROPERTY VALUE or --frame")
	}

	model, reg, err := loadModel()
	if err != nil {
		return err
	}
	p, err := reg.Get(args[0])
	if err != nil {
		return err
	}
	value, err := p.Parse(args[1])
	if err != nil {
		return err
	}

	var out bytes.Buffer
	b := bridge.New(model, reg, &out, bridge.Options{Logger: logger})
	if err := b.Set(args[0], value); err != nil {
		return err
	}
	printEncoded(out.Bytes())
	return nil
}

// moduleRequest builds a request frame by name
func moduleRequest(name string) (*tuya.Frame, error) {
	switch strings.ToLower(name) {
	case "heartbeat":
		return tuya.NewHeartbeat(), nil
	case "product":
		return tuya.NewProductQuery(), nil
	case "query":
		return tuya.NewQueryStatus(), nil
	case "time":
		return tuya.NewLocalTime(time.Now()), nil
	}
	return nil, fmt.Errorf("unknown frame %q (known: heartbeat, product, query, time)", name)
}

// printEncoded prints raw frame bytes as hex followed by their decoding
func printEncoded(raw []byte) {
	fmt.Println(tuya.FormatHex(raw))
	frames, _ := tuya.NewDecoder().Decode(raw)
	for _, f := range frames {
		fmt.Print(tuya.FormatFrame(f))
	}
}
