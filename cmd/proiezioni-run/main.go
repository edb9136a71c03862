// Command proiezioni-run projects a YAML scenario file and prints the result
// as a table.
//
//	proiezioni-run -f data/casa.yaml [-all] [-schedule]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"
	"proiezioni/internal/services"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "proiezioni-run:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("proiezioni-run", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		file     = fs.String("f", "", "scenario YAML file")
		all      = fs.Bool("all", false, "print every day, not only the days the balance moves")
		schedule = fs.Bool("schedule", false, "also print the amortization schedule of every loan")
		maxDays  = fs.Int("max-days", 0, "longest projection accepted, in days")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return errors.New("missing -f scenario file")
	}

	sc, err := scenarios.LoadFile(*file)
	if err != nil {
		return err
	}
	p, err := services.BuildProjection(sc)
	if err != nil {
		return fmt.Errorf("project %s: %w", sc.Name, err)
	}
	points, err := services.NewProjectionEngine(*maxDays).Run(ctx, p)
	if err != nil {
		return fmt.Errorf("project %s: %w", sc.Name, err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(out, "%s (%s - %s)\n\n", sc.Name, sc.StartDate, sc.EndDate)
	fmt.Fprintln(tw, "Data\tMovimento\tSaldo\tDescrizione\t")
	for _, p := range points {
		if !*all && p.Delta.IsZero() {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", p.Date, p.Delta, p.Balance, strings.Join(p.Descriptions, "; "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printSummary(out, services.Summarize(sc.InitialBalance, points))

	if *schedule {
		for _, loan := range sc.Loans {
			if err := printSchedule(out, loan); err != nil {
				return err
			}
		}
	}
	return nil
}

func printSummary(out io.Writer, s core.ProjectionSummary) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Saldo iniziale: %s\n", s.InitialBalance)
	fmt.Fprintf(out, "Saldo finale:   %s\n", s.FinalBalance)
	fmt.Fprintf(out, "Saldo minimo:   %s (%s)\n", s.LowestBalance, s.LowestDate)
	fmt.Fprintf(out, "Entrate: %s  Uscite: %s\n", s.TotalInflow, s.TotalOutflow)
	if !s.FirstNegative.IsEmpty() {
		fmt.Fprintf(out, "Primo saldo negativo: %s\n", s.FirstNegative)
	}
}

func printSchedule(out io.Writer, loan core.Loan) error {
	payments, err := services.AmortizationSchedule(loan)
	if err != nil {
		return fmt.Errorf("loan %q: %w", loan.Description, err)
	}
	paid, interest := services.ScheduleTotals(payments)

	fmt.Fprintf(out, "\nPiano di ammortamento: %s\n\n", loan.Description)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "N.\tData\tRata\tInteressi\tCapitale\tResiduo\t")
	for _, p := range payments {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n", p.Number, p.Date, p.Payment, p.Interest, p.Principal, p.Remaining)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Totale pagato: %s  Interessi: %s\n", paid, interest)
	return nil
}
