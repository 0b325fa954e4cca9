package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// The live rule set is a single row overwritten in place; no history is kept.
const settingsRowID = "current"

// LoadSettings reads the live calculation rule set. When no row has been
// saved yet, or the table does not exist, the built-in defaults apply so the
// engine always has a complete snapshot to work with.
func (s *Store) LoadSettings(ctx context.Context) (settings.Config, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT payload, updated_by
		FROM %s
		WHERE settings_id = @settings_id
		LIMIT 1
	`, s.table(settingsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "settings_id", Value: settingsRowID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		if errors.Is(translateNotFound(err), ErrNotInitialized) {
			return settings.Default(), nil
		}
		return settings.Config{}, fmt.Errorf("LoadSettings: %w", err)
	}

	var row struct {
		Payload   string `bigquery:"payload"`
		UpdatedBy string `bigquery:"updated_by"`
	}
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return settings.Default(), nil
		}
		return settings.Config{}, fmt.Errorf("LoadSettings: reading row: %w", err)
	}

	var cfg settings.Config
	if err := json.Unmarshal([]byte(row.Payload), &cfg); err != nil {
		return settings.Config{}, fmt.Errorf("LoadSettings: decoding payload: %w", err)
	}
	cfg.UpdatedBy = row.UpdatedBy
	return cfg, nil
}

// SaveSettings overwrites the live rule set in place.
func (s *Store) SaveSettings(ctx context.Context, cfg settings.Config, updatedBy string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("SaveSettings: encoding payload: %w", err)
	}

	q := s.client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @settings_id AS settings_id) S
		ON T.settings_id = S.settings_id
		WHEN MATCHED THEN
		  UPDATE SET payload = @payload, updated_by = @updated_by, updated_ts = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN
		  INSERT (settings_id, payload, updated_by, updated_ts)
		  VALUES (@settings_id, @payload, @updated_by, CURRENT_TIMESTAMP())
	`, s.table(settingsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "settings_id", Value: settingsRowID},
		{Name: "payload", Value: string(payload)},
		{Name: "updated_by", Value: updatedBy},
	}

	if _, err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("SaveSettings: %w", err)
	}
	return nil
}
