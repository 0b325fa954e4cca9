package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/olekukonko/tablewriter"

	infraBQ "github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/logger"
	"github.com/fauzanr/rtgs-settlement/internal/reconcile"
)

func main() {
	// Parse command-line flags
	var (
		project = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project id (or set GCP_PROJECT env)")
		dataset = flag.String("dataset", envOr("BQ_DATASET", "rtgs"), "BigQuery dataset (or set BQ_DATASET env)")
		start   = flag.String("start", "", "Period start, YYYY-MM-DD (required)")
		end     = flag.String("end", "", "Period end, YYYY-MM-DD (required)")
	)
	flag.Parse()

	log := logger.New()

	if *project == "" {
		log.Fatal().Msg("GCP project is required (-project or GCP_PROJECT)")
	}

	startDate, err := civil.ParseDate(*start)
	if err != nil {
		log.Fatal().Msg("-start is required, format YYYY-MM-DD")
	}
	endDate, err := civil.ParseDate(*end)
	if err != nil {
		log.Fatal().Msg("-end is required, format YYYY-MM-DD")
	}

	ctx := logger.WithContext(context.Background(), log)

	store, err := infraBQ.NewStore(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	report, err := reconcile.New(store).BuildReport(ctx, startDate, endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build reconciliation report")
	}

	fmt.Printf("Reconciliation report %s .. %s\n\n", report.PeriodStart, report.PeriodEnd)

	printTotals(report)
	printBuckets("Per acquiring bank", "Bank", report.ByBank, true)
	printBuckets("Per settlement date", "Date", report.ByDay, false)
	printBuckets("Per region", "Region", report.ByRegion, false)
	printConfirmations(report)
}

func printTotals(report *reconcile.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Movements", "Amount", "Fee", "Acquirer Share", "Net Settlement"})
	table.Append([]string{
		strconv.FormatInt(report.Totals.Movements, 10),
		report.Totals.Amount.String(),
		report.Totals.Fee.String(),
		report.Totals.AcquirerShare.String(),
		report.Totals.NetSettlement.String(),
	})
	fmt.Println("Totals")
	table.Render()
	fmt.Println()
}

func printBuckets(title, keyName string, lines []reconcile.ReportLine, withLabel bool) {
	if len(lines) == 0 {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	headers := []string{keyName}
	if withLabel {
		headers = append(headers, "Name")
	}
	headers = append(headers, "Movements", "Amount", "Fee", "Acquirer Share", "Net Settlement")
	table.SetHeader(headers)

	for _, line := range lines {
		row := []string{line.Key}
		if withLabel {
			row = append(row, line.Label)
		}
		row = append(row,
			strconv.FormatInt(line.Movements, 10),
			line.Amount.String(),
			line.Fee.String(),
			line.AcquirerShare.String(),
			line.NetSettlement.String(),
		)
		table.Append(row)
	}

	fmt.Println(title)
	table.Render()
	fmt.Println()
}

func printConfirmations(report *reconcile.Report) {
	if len(report.Confirmations) == 0 {
		fmt.Println("No confirmations recorded for this period.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Period", "Reported", "Expected", "Difference", "Status"})
	for _, c := range report.Confirmations {
		status := "MISMATCH"
		if c.Matched {
			status = "MATCHED"
		}
		table.Append([]string{
			fmt.Sprintf("%s .. %s", c.PeriodStart, c.PeriodEnd),
			c.ReportedValue.String(),
			c.Expected.String(),
			c.Difference.String(),
			status,
		})
	}

	fmt.Println("Confirmations")
	table.Render()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
