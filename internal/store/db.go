package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"geoshard-pipeline/internal/model"
)

// ErrNotFound is returned when no job record exists for a dataset.
var ErrNotFound = errors.New("job not found")

// JobStore persists job records in a single sqlite table keyed by dataset
// identifier. It is constructed once and passed to collaborators; there is
// no package-level handle.
type JobStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the job database.
func Open(dbPath string) (*JobStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	jobTable := `
	CREATE TABLE IF NOT EXISTS jobs (
		datasetId TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		fileName TEXT,
		fileType TEXT,
		manifestKey TEXT,
		result TEXT,
		error TEXT,
		createdAt TEXT NOT NULL,
		updatedAt TEXT NOT NULL
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS job_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		datasetId TEXT NOT NULL,
		kind TEXT NOT NULL,
		cause TEXT,
		createdAt TEXT NOT NULL
	);
	`
	if _, err := db.Exec(jobTable); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(errorTable); err != nil {
		db.Close()
		return nil, err
	}
	return &JobStore{db: db}, nil
}

func (s *JobStore) Close() error {
	return s.db.Close()
}

// PutJob upserts a full job record for a (re-)ingested dataset. Re-ingesting
// the same identifier overwrites status, file metadata, and any prior result
// or error; it never fails on a duplicate key. The original createdAt is
// kept when the record already exists.
func (s *JobStore) PutJob(rec model.JobRecord) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO jobs (datasetId, status, fileName, fileType, manifestKey, result, error, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, NULL, NULL, NULL, ?, ?)
		ON CONFLICT(datasetId) DO UPDATE SET
			status = excluded.status,
			fileName = excluded.fileName,
			fileType = excluded.fileType,
			manifestKey = NULL,
			result = NULL,
			error = NULL,
			updatedAt = excluded.updatedAt`,
		rec.DatasetID, string(rec.Status), rec.FileName, string(rec.FileType), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", rec.DatasetID, err)
	}
	return nil
}

// UpdateStatus applies an idempotent, last-write-wins status transition.
// Status and updatedAt are always set; result and the derived manifestKey
// are set only when a result is supplied (a prior result is never cleared);
// error is set only when supplied.
func (s *JobStore) UpdateStatus(datasetID string, status model.JobStatus, result *model.Summary, failure *model.FailureDescriptor) error {
	var resultJSON, errorJSON, manifestKey interface{}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode result for %s: %w", datasetID, err)
		}
		resultJSON = string(data)
		manifestKey = datasetID + "/manifest.json"
	}
	if failure != nil {
		data, err := json.Marshal(failure)
		if err != nil {
			return fmt.Errorf("failed to encode error for %s: %w", datasetID, err)
		}
		errorJSON = string(data)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO jobs (datasetId, status, manifestKey, result, error, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(datasetId) DO UPDATE SET
			status = excluded.status,
			updatedAt = excluded.updatedAt,
			result = COALESCE(excluded.result, jobs.result),
			manifestKey = CASE WHEN excluded.result IS NOT NULL THEN excluded.manifestKey ELSE jobs.manifestKey END,
			error = COALESCE(excluded.error, jobs.error)`,
		datasetID, string(status), manifestKey, resultJSON, errorJSON, now, now)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", datasetID, err)
	}
	return nil
}

// GetJob fetches the full record for a dataset.
func (s *JobStore) GetJob(datasetID string) (*model.JobRecord, error) {
	var (
		rec                  model.JobRecord
		status, fileType     string
		fileName             sql.NullString
		manifestKey          sql.NullString
		resultJSON           sql.NullString
		errorJSON            sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRow(`
		SELECT status, fileName, fileType, manifestKey, result, error, createdAt, updatedAt
		FROM jobs WHERE datasetId = ?`, datasetID).
		Scan(&status, &fileName, &fileType, &manifestKey, &resultJSON, &errorJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", datasetID, err)
	}

	rec.DatasetID = datasetID
	rec.Status = model.JobStatus(status)
	rec.FileName = fileName.String
	rec.FileType = model.FileType(fileType)
	rec.ManifestKey = manifestKey.String
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)

	if resultJSON.Valid && resultJSON.String != "" {
		var summary model.Summary
		if err := json.Unmarshal([]byte(resultJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode result for %s: %w", datasetID, err)
		}
		rec.Result = &summary
	}
	if errorJSON.Valid && errorJSON.String != "" {
		var failure model.FailureDescriptor
		if err := json.Unmarshal([]byte(errorJSON.String), &failure); err != nil {
			return nil, fmt.Errorf("failed to decode error for %s: %w", datasetID, err)
		}
		rec.Error = &failure
	}
	return &rec, nil
}

// ListJobs returns the {datasetId, status, fileName, createdAt} projection
// for every job, newest first.
func (s *JobStore) ListJobs() ([]model.JobListEntry, error) {
	rows, err := s.db.Query(`SELECT datasetId, status, fileName, createdAt FROM jobs ORDER BY createdAt DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.JobListEntry
	for rows.Next() {
		var (
			entry     model.JobListEntry
			status    string
			fileName  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&entry.DatasetID, &status, &fileName, &createdAt); err != nil {
			return nil, err
		}
		entry.Status = model.JobStatus(status)
		entry.FileName = fileName.String
		entry.CreatedAt = parseTime(createdAt)
		jobs = append(jobs, entry)
	}
	return jobs, rows.Err()
}

// SaveJobError appends a failure descriptor to the job error log.
func (s *JobStore) SaveJobError(datasetID, kind, cause string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`INSERT INTO job_errors (datasetId, kind, cause, createdAt) VALUES (?, ?, ?, ?)`,
		datasetID, kind, cause, now)
	return err
}

// GetJobErrors returns the recorded failures for a dataset, oldest first.
func (s *JobStore) GetJobErrors(datasetID string) ([]model.FailureDescriptor, error) {
	rows, err := s.db.Query(`SELECT kind, cause FROM job_errors WHERE datasetId = ? ORDER BY id`, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FailureDescriptor
	for rows.Next() {
		fd := model.FailureDescriptor{DatasetID: datasetID}
		if err := rows.Scan(&fd.Kind, &fd.Cause); err != nil {
			return nil, err
		}
		out = append(out, fd)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
