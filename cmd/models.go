// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/device"
	"github.com/Thermoquad/tuyastat/pkg/property"
)

var modelsYAML bool

var modelsCmd = &cobra.Command{
	Use:   "models [NAME]",
	Short: "List built-in device models or show a model's data points",
	Long: `Without arguments, list the built-in device models.

With a model name, print its dispatch table: every mapped data point with
its property, data type and limits, followed by the ignored data points.
The name "-" selects the configured model (--model or --model-file).

With --yaml the model description is printed in the format accepted by
--model-file, which is a convenient starting point for a custom model.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsYAML, "yaml", false, "Print the model description as YAML")
}

func runModels(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, name := range device.BuiltinNames() {
			spec, _ := device.Builtin(name)
			marker := " "
			if cfg.Device.ModelFile == "" && name == cfg.Device.Model {
				marker = "*"
			}
			fmt.Printf("%s %-10s %s\n", marker, name, spec.Description)
		}
		return nil
	}

	var (
		spec device.ModelSpec
		err  error
	)
	switch {
	case args[0] == "-" && cfg.Device.ModelFile != "":
		spec, err = device.LoadModelSpec(cfg.Device.ModelFile)
	case args[0] == "-":
		spec, err = device.Builtin(cfg.Device.Model)
	default:
		spec, err = device.Builtin(args[0])
	}
	if err != nil {
		return err
	}

	if modelsYAML {
		out, err := device.MarshalModelSpec(spec)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	model, err := device.Build(spec, property.NewRegistry())
	if err != nil {
		return err
	}
	printModel(model)
	return nil
}

// printModel prints the dispatch table of model
func printModel(model *device.Model) {
	fmt.Printf("Model: %s\n", model.Name())
	if d := model.Description(); d != "" {
		fmt.Printf("Description: %s\n", d)
	}
	fmt.Printf("Temperature factor: %g\n\n", model.TemperatureFactor())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DPID\tPROPERTY\tDATA TYPE\tVALUE TYPE\tACCESS\tLIMITS")
	for _, e := range model.Entries() {
		p := e.Property
		access := "rw"
		if p.ReadOnly() {
			access = "ro"
		}
		fmt.Fprintf(w, "0x%02X (%d)\t%s\t%s\t%s\t%s\t%s\n",
			e.DPID, e.DPID, p.ID(), e.Codec.DataType(), p.Type(), access, describeLimits(p))
	}
	w.Flush()

	if ignored := model.IgnoredDPIDs(); len(ignored) > 0 {
		fmt.Printf("\nIgnored:\n")
		for _, dpid := range ignored {
			fmt.Printf("  0x%02X (%d) %s\n", dpid, dpid, model.IgnoredNote(dpid))
		}
	}
}

func describeLimits(p *property.Property) string {
	if p.IsEnum() {
		return fmt.Sprintf("%v", p.Enum())
	}
	lo, hi := p.Range()
	unit := ""
	if p.Unit() != "" {
		unit = " " + p.Unit()
	}
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%g..%g%s", *lo, *hi, unit)
	case lo != nil:
		return fmt.Sprintf(">= %g%s", *lo, unit)
	case hi != nil:
		return fmt.Sprintf("<= %g%s", *hi, unit)
	}
	return "-"
}
