package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, item_key, source_path, mime_type, source_size, status, plan_json, step_index, outputs_json, attempts_json, warnings_json, error_kind, error_step, error_message, remote_url, retry_at, created_at, updated_at, progress_stage, progress_percent, progress_message"

// timeLayout is RFC 3339 with fixed-width nanoseconds. RFC3339Nano trims
// trailing zeros, which breaks the lexicographic ordering the retry_at and
// created_at comparisons in SQL rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              int64
		itemKey         string
		sourcePath      string
		mimeType        string
		sourceSize      sql.NullInt64
		statusStr       string
		planJSON        sql.NullString
		stepIndex       sql.NullInt64
		outputsJSON     sql.NullString
		attemptsJSON    sql.NullString
		warningsJSON    sql.NullString
		errorKind       sql.NullString
		errorStep       sql.NullString
		errorMessage    sql.NullString
		remoteURL       sql.NullString
		retryAtRaw      sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&itemKey,
		&sourcePath,
		&mimeType,
		&sourceSize,
		&statusStr,
		&planJSON,
		&stepIndex,
		&outputsJSON,
		&attemptsJSON,
		&warningsJSON,
		&errorKind,
		&errorStep,
		&errorMessage,
		&remoteURL,
		&retryAtRaw,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		Key:             itemKey,
		SourcePath:      sourcePath,
		MimeType:        mimeType,
		SourceSize:      sourceSize.Int64,
		Status:          Status(statusStr),
		PlanJSON:        planJSON.String,
		StepIndex:       int(stepIndex.Int64),
		OutputsJSON:     outputsJSON.String,
		AttemptsJSON:    attemptsJSON.String,
		WarningsJSON:    warningsJSON.String,
		ErrorKind:       errorKind.String,
		ErrorStep:       errorStep.String,
		ErrorMessage:    errorMessage.String,
		RemoteURL:       remoteURL.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}

	if retryAtRaw.Valid {
		if retryAt, err := parseTimeString(retryAtRaw.String); err == nil {
			item.RetryAt = &retryAt
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
