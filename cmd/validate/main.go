// Command validate recomputes stored payments and broker splits and reports
// every value that differs from the recomputation by more than one cent.
// It exits 1 when anything is found and 2 when it cannot run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"crm-backend/internal/application/splitcheck"
	"crm-backend/internal/config"
	"crm-backend/internal/infrastructure/database"
	"crm-backend/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	dealFlag := flag.String("deal", "", "validate a single deal id (default: all deals)")
	jsonOut := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load:", err)
		os.Exit(2)
	}
	observability.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.DatabaseURL == "" {
		log.Error().Msg("No database configured (DATABASE_URL_DEV / DATABASE_URL_PROD)")
		os.Exit(2)
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("Database open failed")
		os.Exit(2)
	}

	svc := &splitcheck.Service{DB: db}
	ctx := context.Background()
	var report *splitcheck.Report
	if *dealFlag != "" {
		id, perr := uuid.Parse(*dealFlag)
		if perr != nil {
			log.Error().Err(perr).Str("deal", *dealFlag).Msg("Invalid deal id")
			os.Exit(2)
		}
		report, err = svc.CheckDeal(ctx, id)
	} else {
		report, err = svc.CheckAll(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("Validation failed to run")
		os.Exit(2)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		printReport(os.Stdout, report)
	}
	if !report.OK() {
		os.Exit(1)
	}
}

func printReport(w io.Writer, r *splitcheck.Report) {
	fmt.Fprintf(w, "Checked %d deals, %d payments, %d splits\n", r.DealsChecked, r.PaymentsChecked, r.SplitsChecked)
	for _, m := range r.Mismatches {
		broker := "-"
		if m.BrokerID != nil {
			broker = m.BrokerID.String()
		}
		fmt.Fprintf(w, "MISMATCH deal=%s payment=#%d broker=%s %s expected=%s actual=%s diff=%s\n",
			m.DealID, m.PaymentSequence, broker, m.Field, m.Expected.StringFixed(2), m.Actual.StringFixed(2), m.Difference.StringFixed(2))
	}
	for _, m := range r.Missing {
		fmt.Fprintf(w, "MISSING  deal=%s payment=#%d broker=%s\n", m.DealID, m.PaymentSequence, m.BrokerID)
	}
	for _, o := range r.Orphans {
		fmt.Fprintf(w, "ORPHAN   deal=%s payment=%s split=%s broker=%s\n", o.DealID, o.PaymentID, o.PaymentSplitID, o.BrokerID)
	}
	for _, c := range r.Conservation {
		fmt.Fprintf(w, "UNBALANCED deal=%s payment=#%d agci=%s brokers=%s diff=%s\n",
			c.DealID, c.PaymentSequence, c.AGCI.StringFixed(2), c.BrokerTotal.StringFixed(2), c.Difference.StringFixed(2))
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "SKIPPED  deal=%s %s\n", s.DealID, s.Reason)
	}
	if r.OK() {
		fmt.Fprintln(w, "All payment splits match")
		return
	}
	fmt.Fprintf(w, "%d problems found\n", r.Problems())
}
