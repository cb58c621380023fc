package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saude-gov/regulacao/internal/admission/domain"
	"github.com/saude-gov/regulacao/internal/shared/errors"
	"github.com/saude-gov/regulacao/internal/shared/types"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const admissionColumns = `
	id, patient_name, patient_record_number, patient_birth_date, health_card_number,
	admission_type, entry_type, status, cancelled, cancel_reason,
	admission_reason, origin_unit, scheduled_date, ward,
	cid_code, cid_description, clinical_notes,
	discharge_reason, billing_batch, billing_notes, audited,
	admission_date, discharge_date, fa_datetime,
	operator_id, created_at, updated_at`

// Save saves a new admission record with its owned rows in one transaction
func (r *PostgresRepository) Save(ctx context.Context, rec *domain.AdmissionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO regulacao.admissions (%s) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27
		)`, admissionColumns)

	_, err = tx.Exec(ctx, query,
		rec.ID, rec.PatientName, rec.PatientRecordNumber, rec.PatientBirthDate, rec.HealthCardNumber,
		rec.AdmissionType, rec.EntryType, rec.Status, rec.Cancelled, rec.CancelReason,
		rec.AdmissionReason, rec.OriginUnit, rec.ScheduledDate, rec.Ward,
		rec.CIDCode, rec.CIDDescription, rec.ClinicalNotes,
		rec.DischargeReason, rec.BillingBatch, rec.BillingNotes, rec.Audited,
		rec.AdmissionDate, rec.DischargeDate, rec.FaDatetime,
		rec.OperatorID, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("admission record already exists")
		}
		return errors.Wrap(err, "failed to save admission record")
	}

	for i := range rec.Sections {
		if err := upsertSection(ctx, tx, &rec.Sections[i]); err != nil {
			return err
		}
	}
	if err := replaceProcedures(ctx, tx, rec.ID, rec.Procedures); err != nil {
		return err
	}
	for i := range rec.Events {
		if err := insertEvent(ctx, tx, &rec.Events[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// FindByID finds an admission record by ID, with its owned rows loaded
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.AdmissionRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM regulacao.admissions WHERE id = $1`, admissionColumns)

	rec := &domain.AdmissionRecord{}
	err := scanAdmission(r.pool.QueryRow(ctx, query, id), rec)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("admission record", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find admission record")
	}

	if rec.Sections, err = r.getSections(ctx, id); err != nil {
		return nil, err
	}
	if rec.Procedures, err = r.getProcedures(ctx, id); err != nil {
		return nil, err
	}
	if rec.Events, err = r.GetEvents(ctx, id, 50, 0); err != nil {
		return nil, err
	}

	return rec, nil
}

// Update persists the record and its owned rows in one transaction. The
// section ledger is upserted so ownership corrections and fills land
// atomically with the record row.
func (r *PostgresRepository) Update(ctx context.Context, rec *domain.AdmissionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE regulacao.admissions SET
			patient_name = $2, patient_record_number = $3, patient_birth_date = $4, health_card_number = $5,
			admission_type = $6, entry_type = $7, status = $8, cancelled = $9, cancel_reason = $10,
			admission_reason = $11, origin_unit = $12, scheduled_date = $13, ward = $14,
			cid_code = $15, cid_description = $16, clinical_notes = $17,
			discharge_reason = $18, billing_batch = $19, billing_notes = $20, audited = $21,
			admission_date = $22, discharge_date = $23, fa_datetime = $24,
			updated_at = $25
		WHERE id = $1`

	result, err := tx.Exec(ctx, query,
		rec.ID, rec.PatientName, rec.PatientRecordNumber, rec.PatientBirthDate, rec.HealthCardNumber,
		rec.AdmissionType, rec.EntryType, rec.Status, rec.Cancelled, rec.CancelReason,
		rec.AdmissionReason, rec.OriginUnit, rec.ScheduledDate, rec.Ward,
		rec.CIDCode, rec.CIDDescription, rec.ClinicalNotes,
		rec.DischargeReason, rec.BillingBatch, rec.BillingNotes, rec.Audited,
		rec.AdmissionDate, rec.DischargeDate, rec.FaDatetime,
		rec.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update admission record")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("admission record", rec.ID.String())
	}

	for i := range rec.Sections {
		if err := upsertSection(ctx, tx, &rec.Sections[i]); err != nil {
			return err
		}
	}
	if err := replaceProcedures(ctx, tx, rec.ID, rec.Procedures); err != nil {
		return err
	}
	for i := range rec.Events {
		if err := insertEvent(ctx, tx, &rec.Events[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// Delete deletes a record; sections, procedures and events cascade
func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM regulacao.admissions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete admission record")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("admission record", id.String())
	}
	return nil
}

// List lists admission records with filters. Owned rows are loaded per
// record; worklist queries need the section ledger to compute gates.
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.AdmissionRecord, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.AdmissionType != nil {
		conditions = append(conditions, fmt.Sprintf("admission_type = $%d", argNum))
		args = append(args, *filter.AdmissionType)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argNum))
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		argNum++
	}

	if filter.Cancelled != nil {
		conditions = append(conditions, fmt.Sprintf("cancelled = $%d", argNum))
		args = append(args, *filter.Cancelled)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(patient_name ILIKE $%d OR patient_record_number ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM regulacao.admissions %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count admission records")
	}

	orderBy := "created_at"
	switch filter.OrderBy {
	case "updated_at", "admission_date", "patient_name":
		orderBy = filter.OrderBy
	}
	orderDir := "ASC"
	if filter.OrderDesc {
		orderDir = "DESC"
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 200 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`SELECT %s FROM regulacao.admissions %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		admissionColumns, whereClause, orderBy, orderDir, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list admission records")
	}
	defer rows.Close()

	var records []domain.AdmissionRecord
	for rows.Next() {
		var rec domain.AdmissionRecord
		if err := scanAdmission(rows, &rec); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan admission record")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read admission records")
	}

	for i := range records {
		if records[i].Sections, err = r.getSections(ctx, records[i].ID); err != nil {
			return nil, 0, err
		}
	}

	return records, total, nil
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdmission(row rowScanner, rec *domain.AdmissionRecord) error {
	return row.Scan(
		&rec.ID, &rec.PatientName, &rec.PatientRecordNumber, &rec.PatientBirthDate, &rec.HealthCardNumber,
		&rec.AdmissionType, &rec.EntryType, &rec.Status, &rec.Cancelled, &rec.CancelReason,
		&rec.AdmissionReason, &rec.OriginUnit, &rec.ScheduledDate, &rec.Ward,
		&rec.CIDCode, &rec.CIDDescription, &rec.ClinicalNotes,
		&rec.DischargeReason, &rec.BillingBatch, &rec.BillingNotes, &rec.Audited,
		&rec.AdmissionDate, &rec.DischargeDate, &rec.FaDatetime,
		&rec.OperatorID, &rec.CreatedAt, &rec.UpdatedAt,
	)
}

// --- Section ledger operations ---

func upsertSection(ctx context.Context, tx pgx.Tx, s *domain.SectionStatus) error {
	query := `
		INSERT INTO regulacao.section_statuses (
			id, record_id, section, responsible_sector, status, filled_by, filled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_id, section) DO UPDATE SET
			responsible_sector = EXCLUDED.responsible_sector,
			status = EXCLUDED.status,
			filled_by = EXCLUDED.filled_by,
			filled_at = EXCLUDED.filled_at`

	_, err := tx.Exec(ctx, query,
		s.ID, s.RecordID, s.Section, s.ResponsibleSector, s.Status, s.FilledBy, s.FilledAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert section status")
	}
	return nil
}

func (r *PostgresRepository) getSections(ctx context.Context, recordID types.ID) ([]domain.SectionStatus, error) {
	query := `
		SELECT id, record_id, section, responsible_sector, status, filled_by, filled_at
		FROM regulacao.section_statuses
		WHERE record_id = $1
		ORDER BY section`

	rows, err := r.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get section statuses")
	}
	defer rows.Close()

	var sections []domain.SectionStatus
	for rows.Next() {
		var s domain.SectionStatus
		if err := rows.Scan(&s.ID, &s.RecordID, &s.Section, &s.ResponsibleSector, &s.Status, &s.FilledBy, &s.FilledAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan section status")
		}
		sections = append(sections, s)
	}

	return sections, nil
}

// --- Procedure operations ---

// replaceProcedures rewrites the procedure list. Submissions always carry
// the full list, so delete-and-insert keeps positions consistent.
func replaceProcedures(ctx context.Context, tx pgx.Tx, recordID types.ID, procedures []domain.ProcedureEntry) error {
	if _, err := tx.Exec(ctx, `DELETE FROM regulacao.procedure_entries WHERE record_id = $1`, recordID); err != nil {
		return errors.Wrap(err, "failed to clear procedures")
	}

	for i := range procedures {
		p := &procedures[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO regulacao.procedure_entries (
				id, record_id, code, description, quantity, is_primary, position
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.RecordID, p.Code, p.Description, p.Quantity, p.Primary, p.Position,
		)
		if err != nil {
			return errors.Wrap(err, "failed to save procedure")
		}
	}

	return nil
}

func (r *PostgresRepository) getProcedures(ctx context.Context, recordID types.ID) ([]domain.ProcedureEntry, error) {
	query := `
		SELECT id, record_id, code, description, quantity, is_primary, position
		FROM regulacao.procedure_entries
		WHERE record_id = $1
		ORDER BY position`

	rows, err := r.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get procedures")
	}
	defer rows.Close()

	var procedures []domain.ProcedureEntry
	for rows.Next() {
		var p domain.ProcedureEntry
		if err := rows.Scan(&p.ID, &p.RecordID, &p.Code, &p.Description, &p.Quantity, &p.Primary, &p.Position); err != nil {
			return nil, errors.Wrap(err, "failed to scan procedure")
		}
		procedures = append(procedures, p)
	}

	return procedures, nil
}

// --- Event operations ---

// insertEvent appends a timeline event. The record keeps already-persisted
// events in memory, so conflicts on the id are ignored.
func insertEvent(ctx context.Context, tx pgx.Tx, e *domain.RecordEvent) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event data")
	}

	query := `
		INSERT INTO regulacao.record_events (
			id, record_id, type, actor_id, actor_sector, description, data, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err = tx.Exec(ctx, query,
		e.ID, e.RecordID, e.Type, e.ActorID, e.ActorSector, e.Description, dataJSON, e.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save event")
	}
	return nil
}

// AddEvent appends a single timeline event outside a record mutation
func (r *PostgresRepository) AddEvent(ctx context.Context, recordID types.ID, e *domain.RecordEvent) error {
	e.RecordID = recordID
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event data")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO regulacao.record_events (
			id, record_id, type, actor_id, actor_sector, description, data, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.RecordID, e.Type, e.ActorID, e.ActorSector, e.Description, dataJSON, e.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add event")
	}
	return nil
}

// GetEvents returns the record timeline, newest first
func (r *PostgresRepository) GetEvents(ctx context.Context, recordID types.ID, limit, offset int) ([]domain.RecordEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, record_id, type, actor_id, actor_sector, description, data, timestamp
		FROM regulacao.record_events
		WHERE record_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, recordID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}
	defer rows.Close()

	var events []domain.RecordEvent
	for rows.Next() {
		var e domain.RecordEvent
		var dataJSON []byte

		if err := rows.Scan(&e.ID, &e.RecordID, &e.Type, &e.ActorID, &e.ActorSector, &e.Description, &dataJSON, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}

		if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
			e.Data = nil
		}

		events = append(events, e)
	}

	return events, nil
}

// Verify interface implementation
var _ domain.Repository = (*PostgresRepository)(nil)
