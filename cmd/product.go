// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

var productTimeout int

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Query the MCU product information",
	Long: `Send PRODUCT_QUERY and print the product information of the MCU.

The MCU answers with a JSON document such as
  {"p":"abcdefghijklmnop","v":"1.0.0","m":0}
where "p" is the Tuya product key, "v" the MCU firmware version and "m" the
working mode. The product key identifies which device model to use.

Examples:
  tuyastat product --port /dev/ttyS1
  tuyastat product --url ws://thermostat.local/uart

Exit codes:
  0 - Product information received
  1 - No response before timeout
  2 - Connection error`,
	RunE: runProduct,
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.Flags().IntVar(&productTimeout, "timeout", 5, "Timeout in seconds for the response")
}

func runProduct(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Connection, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Tuyastat - Product Query\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", productTimeout)

	fmt.Printf("Sending PRODUCT_QUERY...\n")
	if _, err := conn.Write(tuya.MustEncodeFrame(tuya.NewProductQuery())); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
		os.Exit(2)
	}

	productChan := make(chan []byte, 1)
	errChan := make(chan error, 1)

	go func() {
		found := false
		err := readFrames(conn, func(f *tuya.Frame) error {
			if f.Type() == tuya.TypeProductQuery && f.Version() == tuya.VersionMCU && f.Length() > 0 {
				found = true
				productChan <- f.Data()
				return errStopReading
			}
			return nil
		}, nil)
		if found {
			return
		}
		if err == nil {
			err = ErrConnectionClosed
		}
		errChan <- err
	}()

	select {
	case data := <-productChan:
		info, perr := parseProductInfo(data)
		fmt.Printf("\nProduct information:\n")
		if perr != nil {
			fmt.Printf("  Raw: %s\n", string(data))
			fmt.Printf("  (not JSON: %v)\n", perr)
			return nil
		}
		fmt.Printf("  Product key: %s\n", info.ProductKey)
		fmt.Printf("  MCU version: %s\n", info.Version)
		fmt.Printf("  Working mode: %d\n", info.Mode)

	case err := <-errChan:
		fmt.Printf("READ FAILED: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(productTimeout) * time.Second):
		fmt.Printf("\nTIMEOUT: No product information received in %ds\n", productTimeout)
		os.Exit(1)
	}

	return nil
}

// productInfo is the PRODUCT_QUERY response document
type productInfo struct {
	ProductKey string `json:"p"`
	Version    string `json:"v"`
	Mode       int    `json:"m"`
}

func parseProductInfo(data []byte) (productInfo, error) {
	var info productInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return productInfo{}, err
	}
	return info, nil
}
