// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

var decodeCmd = &cobra.Command{
	Use:   "decode HEX...",
	Short: "Decode hex bytes into frames",
	Long: `Decode Tuya frames from hex offline.

The arguments are joined and may contain spaces, colons or a 0x prefix.
Every complete frame is printed with its data points interpreted through the
selected device model; bytes that do not form a valid frame are reported.

Example:
  tuyastat decode 55 AA 03 07 00 05 02 04 00 01 01 16`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	raw, err := parseHex(strings.Join(args, ""))
	if err != nil {
		return err
	}

	model, _, err := loadModel()
	if err != nil {
		return err
	}

	decoder := tuya.NewDecoder()
	frames, errs := decoder.Decode(raw)
	for _, f := range frames {
		fmt.Print(formatFrame(model, f))
		for _, issue := range tuya.ValidateFrame(f) {
			fmt.Printf("    ! %s\n", issue.Message)
		}
	}
	for _, e := range errs {
		fmt.Printf("rejected: %v\n", e)
	}
	if n := decoder.Buffered(); n > 0 {
		fmt.Printf("incomplete: %d bytes buffered\n", n)
	}
	if len(frames) == 0 {
		return fmt.Errorf("no valid frame in %d bytes", len(raw))
	}
	return nil
}

// parseHex accepts hex with optional separators and 0x prefixes
func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer("0x", "", "0X", "", " ", "", ":", "", ",", "", "\n", "", "\t", "").Replace(s)
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return raw, nil
}
