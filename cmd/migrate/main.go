package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

var (
	projectID = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID (required)")
	datasetID = flag.String("dataset", "rtgs", "BigQuery dataset ID")
	location  = flag.String("location", "EU", "Dataset location for first-time creation")
)

// DDL statements, in dependency-free order. All use IF NOT EXISTS so the
// command is safe to re-run.
var tableDDL = []struct {
	name string
	sql  string
}{
	{"transactions", `
		CREATE TABLE IF NOT EXISTS %s.transactions (
			transaction_id   STRING NOT NULL,
			import_id        STRING NOT NULL,
			reference_no     STRING NOT NULL,
			issuer_code      STRING,
			acquirer_code    STRING,
			message_type     STRING,
			transaction_ts   TIMESTAMP,
			settlement_date  DATE,
			card_masked      STRING,
			currency         STRING,
			amount_raw       NUMERIC,
			amount           NUMERIC,
			fee_raw          NUMERIC,
			fee              NUMERIC,
			acquirer_share   NUMERIC,
			net_settlement   NUMERIC,
			merchant_code    STRING,
			terminal_type    STRING,
			category_code    STRING,
			content_hash     STRING NOT NULL,
			created_ts       TIMESTAMP NOT NULL
		)
		PARTITION BY settlement_date
		CLUSTER BY acquirer_code, merchant_code
	`},
	{"import_batches", `
		CREATE TABLE IF NOT EXISTS %s.import_batches (
			import_id          STRING NOT NULL,
			filename           STRING NOT NULL,
			gcs_uri            STRING,
			uploaded_by        STRING,
			total_rows         INT64,
			inserted_rows      INT64,
			skipped_duplicates INT64,
			rejected_rows      INT64,
			duration_ms        INT64,
			reject_sample      STRING,
			status             STRING NOT NULL,
			started_ts         TIMESTAMP NOT NULL,
			finished_ts        TIMESTAMP
		)
	`},
	{"confirmations", `
		CREATE TABLE IF NOT EXISTS %s.confirmations (
			confirmation_id       STRING NOT NULL,
			period_start          DATE NOT NULL,
			period_end            DATE NOT NULL,
			reported_value        NUMERIC NOT NULL,
			fee_sum_snapshot      NUMERIC,
			acquirer_sum_snapshot NUMERIC,
			received_date         DATE,
			note                  STRING,
			created_by            STRING,
			created_ts            TIMESTAMP NOT NULL
		)
	`},
	{"calc_settings", `
		CREATE TABLE IF NOT EXISTS %s.calc_settings (
			settings_id STRING NOT NULL,
			payload     STRING NOT NULL,
			updated_by  STRING,
			updated_ts  TIMESTAMP NOT NULL
		)
	`},
	{"merchants", `
		CREATE TABLE IF NOT EXISTS %s.merchants (
			merchant_code STRING NOT NULL,
			name          STRING,
			city          STRING
		)
	`},
	{"banks", `
		CREATE TABLE IF NOT EXISTS %s.banks (
			bank_code    STRING NOT NULL,
			display_name STRING,
			region       STRING
		)
	`},
}

func main() {
	flag.Parse()

	ctx := context.Background()

	if *projectID == "" {
		log.Fatal("Error: -project flag is required. Please specify your GCP project ID.")
	}

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatalf("Failed to create BigQuery client: %v", err)
	}
	defer client.Close()

	log.Printf("Connected to BigQuery project: %s, dataset: %s", *projectID, *datasetID)

	if err := ensureDataset(ctx, client); err != nil {
		log.Fatalf("Failed to ensure dataset: %v", err)
	}

	qualified := fmt.Sprintf("`%s.%s`", *projectID, *datasetID)
	for _, t := range tableDDL {
		log.Printf("  [RUN]  %s", t.name)

		q := client.Query(fmt.Sprintf(t.sql, qualified))
		job, err := q.Run(ctx)
		if err != nil {
			log.Fatalf("Failed to create table %s: %v", t.name, err)
		}
		status, err := job.Wait(ctx)
		if err == nil {
			err = status.Err()
		}
		if err != nil {
			log.Fatalf("Failed to create table %s: %v", t.name, err)
		}

		log.Printf("  [OK]   %s", t.name)
	}

	log.Printf("Successfully ensured %d tables", len(tableDDL))
}

func ensureDataset(ctx context.Context, client *bigquery.Client) error {
	err := client.Dataset(*datasetID).Create(ctx, &bigquery.DatasetMetadata{Location: *location})
	if err == nil {
		log.Printf("Created dataset %s", *datasetID)
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 409 {
		log.Printf("Dataset %s already exists", *datasetID)
		return nil
	}
	return err
}
